package api

import (
	"fmt"
	"strings"

	"relay/models"
)

const (
	// maxAttachmentChars bounds token usage from oversized uploads.
	maxAttachmentChars = 50000
	truncationMarker   = "\n[truncated]"
	defaultImageMime   = "image/jpeg"

	// attachmentOnlyPrompt is synthesized when a message has attachments but
	// no text, so a provider never receives an empty turn.
	attachmentOnlyPrompt = "Please analyze the attached content."
)

// BlockKind discriminates converted content blocks.
type BlockKind int

const (
	BlockImage BlockKind = iota
	BlockText
)

// Block is one provider-neutral content block. The provider clients map
// blocks onto their own content encodings: typed base64 image blocks for the
// messages API, data-URI image parts for chat completions.
type Block struct {
	Kind BlockKind
	MIME string
	Data string
	Text string
}

// ContentBlocks converts one message into ordered content blocks: all image
// blocks first, then all file-text blocks, then the primary text last. The
// ordering is fixed so multi-modal prompts stay reproducible across
// providers. An empty slice means the message had no usable content.
func ContentBlocks(msg models.Message) []Block {
	var images, texts []Block
	for _, att := range msg.Attachments {
		switch att.Kind {
		case models.AttachmentImage:
			if att.Data == "" {
				continue
			}
			images = append(images, Block{Kind: BlockImage, MIME: imageMime(att.MimeType), Data: att.Data})
		case models.AttachmentText, models.AttachmentDocument:
			if att.Text == "" {
				continue
			}
			texts = append(texts, Block{Kind: BlockText, Text: fileExcerpt(att)})
		}
	}

	blocks := append(images, texts...)
	primary := msg.Content
	if primary == "" && len(blocks) > 0 {
		primary = attachmentOnlyPrompt
	}
	if primary != "" {
		blocks = append(blocks, Block{Kind: BlockText, Text: primary})
	}
	return blocks
}

// DataURI renders an image block as a data URI for providers without typed
// image blocks.
func DataURI(b Block) string {
	return "data:" + b.MIME + ";base64," + b.Data
}

func imageMime(mime string) string {
	if strings.HasPrefix(mime, "image/") {
		return mime
	}
	return defaultImageMime
}

func fileExcerpt(att models.Attachment) string {
	text := att.Text
	if len(text) > maxAttachmentChars {
		text = text[:maxAttachmentChars] + truncationMarker
	}
	return fmt.Sprintf("[File: %s]\n%s", att.Filename, text)
}
