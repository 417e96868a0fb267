//go:build darwin

package codec

// platformTools on darwin uses sips, which wraps ImageIO and ships with the OS.
func platformTools() []ToolSpec {
	return []ToolSpec{
		{
			Name:   "tool-sips",
			Binary: "sips",
			Exts:   heifExts,
			Args: func(in, out string) []string {
				return []string{"-s", "format", "png", in, "--out", out}
			},
		},
	}
}
