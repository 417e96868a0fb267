//go:build !darwin && !linux

package codec

func platformTools() []ToolSpec {
	return nil
}
