package assets

import (
	"context"
	"fmt"
	"os"

	getter "github.com/hashicorp/go-getter"
)

// Fetch downloads src into the directory dst. Src is any go-getter source:
// a local path, an HTTP(S) URL, an archive, or a forced "git::" / "s3::"
// reference. Single files land inside dst under their base name.
func Fetch(ctx context.Context, src, dst string) error {
	pwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	client := &getter.Client{
		Ctx:  ctx,
		Src:  src,
		Dst:  dst,
		Pwd:  pwd,
		Mode: getter.ClientModeAny,
	}
	if err := client.Get(); err != nil {
		return fmt.Errorf("fetching %s: %w", src, err)
	}
	return nil
}
