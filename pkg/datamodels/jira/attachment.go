package jira

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/diwise/jira-client/pkg/jira/errors"
	"github.com/diwise/jira-client/pkg/jira/field"
	"github.com/diwise/jira-client/pkg/jira/types"
	"github.com/diwise/jira-client/pkg/jira/types/resources"
)

type Attachment struct {
	resources.Resource

	Author     *User
	Filename   string
	Created    *time.Time
	Size       int
	MimeType   string
	ContentURL string
}

// NewAttachment creates an attachment from a payload. Payloads without an
// id get the last path segment of the self link as id.
func NewAttachment(transport types.Transport, payload map[string]any) (*Attachment, error) {
	a := &Attachment{
		Resource: resources.New(transport, payload),
	}

	if payload == nil {
		return a, nil
	}

	var err error

	if a.ID() == "" && a.Self() != "" {
		a.SetID(lastSegment(a.Self()))
	}

	author, ok, err := field.Resource(payload["author"], func(obj map[string]any) (*User, error) {
		return NewUser(transport, obj)
	})
	if err != nil {
		return nil, err
	}
	if ok {
		a.Author = author
	}

	a.Filename = field.String(payload["filename"])
	a.MimeType = field.String(payload["mimeType"])
	a.ContentURL = field.String(payload["content"])

	if a.Created, err = field.Time(payload["created"]); err != nil {
		return nil, err
	}

	if a.Size, err = field.Int(payload["size"]); err != nil {
		return nil, err
	}

	return a, nil
}

func (a *Attachment) IdentityKey() string {
	return a.ID()
}

func (a *Attachment) String() string {
	return a.ContentURL
}

func GetAttachment(ctx context.Context, transport types.Transport, id string) (*Attachment, error) {
	result, err := transport.Get(ctx, "attachment/"+segment(id), nil)
	if err != nil {
		return nil, errors.Wrap(AttachmentResource, id, "retrieve", err)
	}

	payload, err := object(result)
	if err != nil {
		return nil, errors.Wrap(AttachmentResource, id, "retrieve", err)
	}

	a, err := NewAttachment(transport, payload)
	return a, errors.Wrap(AttachmentResource, id, "retrieve", err)
}

// Download returns the complete content of the attachment.
func (a *Attachment) Download(ctx context.Context) ([]byte, error) {
	if err := a.checkDownloadable(); err != nil {
		return nil, errors.Wrap(AttachmentResource, a.ID(), "download", err)
	}

	content, err := a.Transport().Download(ctx, a.ContentURL)
	return content, errors.Wrap(AttachmentResource, a.ID(), "download", err)
}

// DownloadTo streams the content of the attachment into w without holding
// all of it in memory.
func (a *Attachment) DownloadTo(ctx context.Context, w io.Writer) (int64, error) {
	if err := a.checkDownloadable(); err != nil {
		return 0, errors.Wrap(AttachmentResource, a.ID(), "download", err)
	}

	n, err := a.Transport().DownloadTo(ctx, a.ContentURL, w)
	return n, errors.Wrap(AttachmentResource, a.ID(), "download", err)
}

// DownloadToDirectory writes the content to a file named after the
// attachment, inside a new uniquely named sub directory of dir. The path of
// the file is returned. Nothing is left behind in the sub directory if the
// download fails.
func (a *Attachment) DownloadToDirectory(ctx context.Context, dir string) (string, error) {
	if err := a.checkDownloadable(); err != nil {
		return "", errors.Wrap(AttachmentResource, a.ID(), "download", err)
	}

	subdir, err := os.MkdirTemp(dir, "attachment-"+a.ID())
	if err != nil {
		return "", errors.Wrap(AttachmentResource, a.ID(), "download", fmt.Errorf("failed to create download directory: %w", err))
	}

	filename := filepath.Join(subdir, a.localFilename())

	file, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", errors.Wrap(AttachmentResource, a.ID(), "download", fmt.Errorf("failed to create download file: %w", err))
	}

	w := bufio.NewWriter(file)

	_, err = a.Transport().DownloadTo(ctx, a.ContentURL, w)
	if err == nil {
		err = w.Flush()
	}

	if closeErr := file.Close(); err == nil && closeErr != nil {
		err = closeErr
	}

	if err != nil {
		os.Remove(filename)
		return "", errors.Wrap(AttachmentResource, a.ID(), "download", err)
	}

	return filename, nil
}

func (a *Attachment) checkDownloadable() error {
	if a.Transport() == nil {
		return errors.NewConstructionError("attachment has no transport", nil)
	}

	if a.ContentURL == "" {
		return errors.NewConstructionError("attachment has no content url", nil)
	}

	return nil
}

// localFilename keeps only the base name so that a file name sent by the
// service can never point outside of the download directory.
func (a *Attachment) localFilename() string {
	name := filepath.Base(filepath.FromSlash(strings.ReplaceAll(a.Filename, "\\", "/")))
	if name == "." || name == string(filepath.Separator) || name == ".." || name == "" {
		return "attachment-" + a.ID()
	}
	return name
}

func lastSegment(self string) string {
	self = strings.TrimRight(self, "/")
	if idx := strings.LastIndex(self, "/"); idx >= 0 {
		return self[idx+1:]
	}
	return self
}
