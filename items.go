package godispatch

import (
	"bufio"
	"strings"

	"github.com/godispatch/godispatch/file"
)

const maxItemLength = 1024 * 1024

//LoadWorkItems read the work item list from a file, one item per line.
//Items are opaque text, kept in source order; blank lines are dropped and
//trailing CR/LF removed. Failing to open or read the list is fatal for the
//whole run since no work can proceed without it.
func LoadWorkItems(fd file.FileDescriptor) ([]string, DispatchError) {
	reader, err := fd.Store.Open(fd.FileName, fd.Encoding)
	if err != nil {
		return nil, NewDispatchError(ErrCodeInput, "open work item list[%v] err:%v", fd.FileName, err)
	}
	defer reader.Close()
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxItemLength)
	items := make([]string, 0)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		items = append(items, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, NewDispatchError(ErrCodeInput, "read work item list[%v] err:%v", fd.FileName, err)
	}
	return items, nil
}
