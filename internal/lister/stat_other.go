//go:build !linux && !darwin && !freebsd && !netbsd

package lister

import (
	"io/fs"

	"github.com/soyeahso/lla/pkg/wire"
)

func platformMetadata(string, fs.FileInfo, *wire.Metadata) {}
