package cmd

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/javi11/altview/internal/bitmap"
	"github.com/javi11/altview/internal/pathutil"
)

func init() {
	thumbCmd := &cobra.Command{
		Use:   "thumb <file>",
		Short: "Decode an image and write it as PNG",
		Long: `Decode a single image through the selected decoder. By default a thumbnail
bounded by the configured size is written; --full writes the upright full image.`,
		Args: cobra.ExactArgs(1),
		RunE: runThumb,
	}

	thumbCmd.Flags().StringP("output", "o", "", "Output PNG path (default <name>.thumb.png)")
	thumbCmd.Flags().Int("size", 0, "Thumbnail long side in pixels (default from config)")
	thumbCmd.Flags().Bool("full", false, "Decode the full image instead of a thumbnail")

	rootCmd.AddCommand(thumbCmd)
}

func runThumb(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	id, err := bitmap.NewIdentity(args[0])
	if err != nil {
		return err
	}

	full, _ := cmd.Flags().GetBool("full")
	size, _ := cmd.Flags().GetInt("size")
	if size <= 0 {
		size = a.cfg.GetThumbnailSize()
	}

	key := bitmap.ThumbnailKey(id, size)
	if full {
		key = bitmap.FullKey(id)
	}

	bmp, ok := a.loader.Decode(ctx, key)
	if !ok {
		return fmt.Errorf("no image could be decoded from %s with decoder %s", args[0], a.decoder.Name())
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		base := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		suffix := ".thumb.png"
		if full {
			suffix = ".full.png"
		}
		output = base + suffix
	}

	if err := pathutil.CheckFileDirectoryWritable(a.fs, output, "output"); err != nil {
		return err
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", output, err)
	}
	defer f.Close()

	if err := png.Encode(f, bmp.ToImage()); err != nil {
		return fmt.Errorf("failed to encode %s: %w", output, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %dx%d (%s) -> %s\n", args[0], bmp.Width, bmp.Height, key.Kind, output)
	return nil
}
