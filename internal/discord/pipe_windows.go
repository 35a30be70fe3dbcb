//go:build windows

package discord

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"golang.org/x/sys/windows"
)

func candidatePaths() []string {
	paths := make([]string, 0, pipeSlots)
	for i := 0; i < pipeSlots; i++ {
		paths = append(paths, `\\.\pipe\discord-ipc-`+strconv.Itoa(i))
	}
	return paths
}

func dialPath(ctx context.Context, path string) (io.ReadWriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, fmt.Errorf("encode pipe path: %w", err)
	}
	h, err := windows.CreateFile(
		p,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		0,
		nil,
		windows.OPEN_EXISTING,
		// Overlapped handles get read and write deadlines from os.File.
		windows.FILE_ATTRIBUTE_NORMAL|windows.FILE_FLAG_OVERLAPPED,
		0,
	)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}
	return os.NewFile(uintptr(h), path), nil
}
