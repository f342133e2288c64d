package zip

import (
	"context"

	"github.com/yeka/zip"
	"github.com/zipfx/zipfx/internal/archive/tool"
	"github.com/zipfx/zipfx/internal/stream"
)

func decompress(ctx context.Context, file *zip.File, targetPath, password string, up stream.UpdateProgress) error {
	rc, err := openFile(file, password)
	if err != nil {
		return err
	}
	defer rc.Close()
	err = tool.WriteEntry(ctx, targetPath, rc, int64(file.UncompressedSize64), file.Mode(), file.ModTime(), up)
	return filterPassword(err)
}
