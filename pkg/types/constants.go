package types

const (
	// MaxDefaultLines is the number of output lines returned when the caller sets no limit.
	MaxDefaultLines = 200
	// MaxAllowedLines caps the max_lines control parameter.
	MaxAllowedLines = 100000
)

// Control parameter names shared by every generated operation. They configure a single
// call and are never rendered into the plugin's argv.
const (
	ParamServer    = "_server"
	ParamToken     = "_token"
	ParamProjectID = "_project_id"
	ParamInsecure  = "_insecure"
	ParamMaxLines  = "_max_lines"
	ParamOffset    = "_offset"
)
