package testutil

// People returns the semicolon-separated id;name;birthday fixture with
// Alice, Bob and Horst.
func People(t TestingT) *Builder {
	return NewBuilder(t, "id", "name", "birthday").
		WithDelimiter(';').
		WithRow("1", "Alice", "1979-12-31").
		WithRow("2", "Bob", "1977-06-11").
		WithRow("3", "Horst", "1990-01-02")
}
