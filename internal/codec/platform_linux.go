//go:build linux

package codec

// platformTools on linux uses the libheif command line tools when installed.
// heif-dec replaced heif-convert in libheif 1.17; both are probed.
func platformTools() []ToolSpec {
	args := func(in, out string) []string {
		return []string{in, out}
	}

	return []ToolSpec{
		{Name: "tool-heif-dec", Binary: "heif-dec", Exts: heifExts, Args: args},
		{Name: "tool-heif-convert", Binary: "heif-convert", Exts: heifExts, Args: args},
	}
}
