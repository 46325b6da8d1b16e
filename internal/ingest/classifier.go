// Package ingest normalizes raw Green API webhook notifications into
// typed inbound events for the routing engine.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bridge/internal/domain"
	"github.com/spec-kit/ticket-bridge/internal/media"
	"github.com/spec-kit/ticket-bridge/internal/observability"
)

const webhookIncomingMessage = "incomingMessageReceived"

// contentKinds maps recognized Green API message types to content kinds.
var contentKinds = map[string]domain.MessageKind{
	"textMessage":     domain.KindText,
	"audioMessage":    domain.KindAudio,
	"imageMessage":    domain.KindImage,
	"videoMessage":    domain.KindVideo,
	"documentMessage": domain.KindDocument,
}

// webhookPayload mirrors the notification fields this service consumes.
type webhookPayload struct {
	TypeWebhook string `json:"typeWebhook"`
	IDMessage   string `json:"idMessage"`
	SenderData  struct {
		Sender     string `json:"sender"`
		SenderName string `json:"senderName"`
		ChatName   string `json:"chatName"`
	} `json:"senderData"`
	MessageData struct {
		TypeMessage     string `json:"typeMessage"`
		ChatID          string `json:"chatId"`
		SenderName      string `json:"senderName"`
		TextMessageData struct {
			TextMessage string `json:"textMessage"`
		} `json:"textMessageData"`
		FileMessageData fileMessageData `json:"fileMessageData"`
	} `json:"messageData"`
}

type fileMessageData struct {
	DownloadURL string `json:"downloadUrl"`
	FileName    string `json:"fileName"`
	FileSize    int64  `json:"fileSize"`
	Seconds     int    `json:"seconds"`
	MimeType    string `json:"mimeType"`
	Caption     string `json:"caption"`
}

// Classifier validates and normalizes inbound notifications. Anything
// unrecognized is logged and discarded without ticket mutation.
type Classifier struct {
	downloader *media.Downloader
	transcoder *media.Transcoder
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewClassifier constructs the classifier. Downloader and transcoder
// may be nil; audio then keeps its remote reference unconverted.
func NewClassifier(downloader *media.Downloader, transcoder *media.Transcoder, logger *zap.Logger, metrics *observability.Metrics) *Classifier {
	return &Classifier{
		downloader: downloader,
		transcoder: transcoder,
		logger:     logger,
		metrics:    metrics,
	}
}

// ReceiptID extracts the platform message id used for duplicate
// delivery detection, before full classification.
func ReceiptID(raw []byte) string {
	var payload struct {
		IDMessage string `json:"idMessage"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	return payload.IDMessage
}

// Classify turns one raw notification into an InboundEvent, or nil when
// the notification is not actionable.
func (c *Classifier) Classify(ctx context.Context, raw []byte) (*domain.InboundEvent, error) {
	var payload webhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}

	if payload.TypeWebhook != webhookIncomingMessage {
		c.logger.Debug("non-actionable webhook", zap.String("type", payload.TypeWebhook))
		c.metrics.RecordEvent("webhook_ignored")
		return nil, nil
	}

	sender := payload.MessageData.ChatID
	if sender == "" {
		sender = payload.SenderData.Sender
	}
	senderName := senderNameFallback(payload)

	kind, ok := contentKinds[payload.MessageData.TypeMessage]
	if !ok {
		c.logger.Info("unsupported message type discarded",
			zap.String("type", payload.MessageData.TypeMessage),
			zap.String("sender", sender))
		c.metrics.RecordEvent("webhook_discarded")
		return nil, nil
	}

	var msg domain.Message
	switch kind {
	case domain.KindText:
		text := payload.MessageData.TextMessageData.TextMessage
		if sender == "" || text == "" {
			c.logger.Info("empty text message ignored", zap.String("sender", sender))
			c.metrics.RecordEvent("webhook_discarded")
			return nil, nil
		}
		built, err := domain.NewTextMessage(senderName, text)
		if err != nil {
			return nil, err
		}
		msg = built
	case domain.KindAudio:
		if sender == "" {
			c.metrics.RecordEvent("webhook_discarded")
			return nil, nil
		}
		msg = c.buildVoiceMessage(ctx, senderName, payload.MessageData.FileMessageData)
	default:
		if sender == "" {
			c.metrics.RecordEvent("webhook_discarded")
			return nil, nil
		}
		msg = buildMediaMessage(senderName, kind, payload.MessageData.FileMessageData)
	}

	c.metrics.RecordEvent("webhook_classified")
	return &domain.InboundEvent{
		SenderID:   sender,
		SenderName: senderName,
		Message:    msg,
	}, nil
}

// senderNameFallback walks the payload locations a display name can
// appear in, defaulting to "Unknown".
func senderNameFallback(payload webhookPayload) string {
	if name := payload.MessageData.SenderName; name != "" && name != "Unknown" {
		return name
	}
	if name := payload.SenderData.SenderName; name != "" {
		return name
	}
	if name := payload.SenderData.ChatName; name != "" {
		return name
	}
	return "Unknown"
}

// buildVoiceMessage records the voice note and, best-effort, fetches
// and normalizes it to mp3. A failed fetch or conversion keeps the
// original remote reference; ingestion never fails for that alone.
func (c *Classifier) buildVoiceMessage(ctx context.Context, senderName string, file fileMessageData) domain.Message {
	fileName := file.FileName
	if fileName == "" {
		fileName = "voice_message.ogg"
	}
	mimeType := file.MimeType
	if mimeType == "" {
		mimeType = "audio/ogg"
	}

	metadata := map[string]any{
		"transcription_status": "pending",
		"original_file_name":   file.FileName,
	}

	if c.downloader != nil && c.transcoder != nil && file.DownloadURL != "" && mimeType != "audio/mpeg" {
		localPath, err := c.downloader.Fetch(ctx, file.DownloadURL, fileName)
		if err != nil {
			c.logger.Warn("voice download failed; keeping remote reference",
				zap.String("url", file.DownloadURL), zap.Error(err))
			metadata["transcode"] = "fetch_failed"
		} else {
			converted := filepath.Join(filepath.Dir(localPath), media.MP3Name(fileName))
			if err := c.transcoder.NormalizeAudio(ctx, localPath, converted); err != nil {
				c.logger.Warn("voice normalization failed; keeping original",
					zap.String("file", fileName), zap.Error(err))
				metadata["transcode"] = "failed"
			} else {
				fileName = media.MP3Name(fileName)
				metadata["transcode"] = "ok"
				os.Remove(localPath)
			}
		}
	}

	msg, err := domain.NewMediaMessage(senderName, domain.KindAudio,
		voiceBody(file.Seconds),
		&domain.MediaRef{
			URL:         file.DownloadURL,
			FileName:    fileName,
			SizeBytes:   file.FileSize,
			MimeType:    mimeType,
			DurationSec: file.Seconds,
		})
	if err != nil {
		// unreachable: descriptor is always populated above
		c.logger.Error("voice message construction failed", zap.Error(err))
	}
	msg.Metadata = metadata

	c.logger.Info("voice message received",
		zap.String("sender", senderName),
		zap.Int("duration_sec", file.Seconds),
		zap.Int64("size_bytes", file.FileSize))
	return msg
}

func buildMediaMessage(senderName string, kind domain.MessageKind, file fileMessageData) domain.Message {
	fileName := file.FileName
	if fileName == "" {
		fileName = string(kind) + "_file"
	}

	body := "[" + titleKind(kind) + " Message]"
	if file.Caption != "" {
		body += ": " + file.Caption
	}

	msg, _ := domain.NewMediaMessage(senderName, kind, body, &domain.MediaRef{
		URL:       file.DownloadURL,
		FileName:  fileName,
		SizeBytes: file.FileSize,
		MimeType:  file.MimeType,
	})
	if file.Caption != "" {
		msg.Metadata = map[string]any{"caption": file.Caption}
	}
	return msg
}

func voiceBody(seconds int) string {
	return fmt.Sprintf("[Voice Message - %ds]", seconds)
}

func titleKind(kind domain.MessageKind) string {
	s := string(kind)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
