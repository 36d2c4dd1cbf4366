package tracing

// Span names.
const (
	SpanExecute = "csvsource.execute"
	SpanParse   = "csvsource.parse"
)

// Span attribute keys.
const (
	AttrInstanceID  = "csvsource.instance_id"
	AttrHandle      = "csvsource.handle"
	AttrAttributes  = "csvsource.attributes"
	AttrFilterGroup = "csvsource.filter.groups"
	AttrPage        = "csvsource.page"
	AttrLimit       = "csvsource.limit"
	AttrResultRows  = "csvsource.result.rows"
	AttrParsedRows  = "csvsource.parse.rows"
	AttrPayloadSize = "csvsource.parse.bytes"
)
