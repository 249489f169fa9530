package tool

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yun-ni-2024/ai-assistant-app/internal/upload"
)

// fileExecutor reads a previously uploaded file and purges it afterwards.
// Each upload can ground at most one turn.
type fileExecutor struct {
	desc    Descriptor
	uploads *upload.Store
}

func newFileExecutor(desc Descriptor, deps Deps) Executor {
	return &fileExecutor{desc: desc, uploads: deps.Uploads}
}

// Execute 读取上传文件内容，读取成功后删除底层文件。
func (e *fileExecutor) Execute(ctx context.Context, params map[string]string) Result {
	started := time.Now()

	fileID := strings.TrimSpace(params["file_id"])
	if fileID == "" {
		return failure(e.desc.Name, started, "no file id provided")
	}
	if e.uploads == nil {
		return failure(e.desc.Name, started, "upload store not configured")
	}
	if err := ctx.Err(); err != nil {
		return failure(e.desc.Name, started, fmt.Sprintf("canceled before read: %v", err))
	}

	data, info, err := e.uploads.Read(fileID)
	if err != nil {
		return failure(e.desc.Name, started, err.Error())
	}

	if !utf8.Valid(data) {
		return failure(e.desc.Name, started, "file contains non-UTF-8 content")
	}

	// Read-then-purge: the file is gone once its content has been captured.
	if err := e.uploads.Delete(fileID); err != nil {
		log.Printf("[tool] failed to purge upload %s: %v", fileID, err)
	}

	digest := fmt.Sprintf("File: %s (%d bytes)\n\n%s",
		info.Name, info.Size, truncate(string(data), e.desc.maxContent()))

	return Result{
		ToolName: e.desc.Name,
		Success:  true,
		Content:  digest,
		Elapsed:  time.Since(started),
	}
}
