package buildwire

// BuildOptions configures one build call.
type BuildOptions struct {
	EntryPoints []string
	Outfile     string
	Bundle      bool
	Write       bool
	Minify      bool
	Sourcemap   bool
	Target      string
	External    []string
	Define      map[string]string
	Plugins     []*Plugin
}

// TransformOptions configures one transform call. The input source text is
// passed alongside, not inside, the options.
type TransformOptions struct {
	Loader    string
	Target    string
	Minify    bool
	Sourcemap bool
	Define    map[string]string
}

// OutputFile is one file produced by a build.
type OutputFile struct {
	Path     string
	Contents []byte
}

// BuildResult is the successful outcome of a build call.
type BuildResult struct {
	OutputFiles []OutputFile
	Warnings    []Message
}

// TransformResult is the successful outcome of a transform call.
type TransformResult struct {
	JS          string
	JSSourceMap string
	Warnings    []Message
}
