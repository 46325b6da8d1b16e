// Package transport implements the Green API WhatsApp client used for
// all outbound sends.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bridge/internal/config"
	apperrors "github.com/spec-kit/ticket-bridge/pkg/util"
)

// Client talks to a single Green API WhatsApp instance.
type Client struct {
	cfg    config.GreenAPIConfig
	http   *http.Client
	logger *zap.Logger
}

// NewClient builds a client with the configured request timeout.
func NewClient(cfg config.GreenAPIConfig, logger *zap.Logger) *Client {
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout()},
		logger: logger,
	}
}

type sendMessageRequest struct {
	ChatID  string `json:"chatId"`
	Message string `json:"message"`
}

type sendFileResponse struct {
	URLFile string `json:"urlFile"`
}

// SendText delivers a text message to the target chat.
func (c *Client) SendText(ctx context.Context, target, body string) error {
	url := fmt.Sprintf("%s/waInstance%s/sendMessage/%s",
		c.cfg.APIBaseURL, c.cfg.InstanceID, c.cfg.APIToken)

	payload, err := json.Marshal(sendMessageRequest{ChatID: target, Message: body})
	if err != nil {
		return apperrors.NewTransportFailure(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return apperrors.NewTransportFailure(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("send message failed", zap.String("target", target), zap.Error(err))
		return apperrors.NewTransportFailure(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		c.logger.Error("send message rejected",
			zap.String("target", target),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", body))
		return apperrors.NewTransportFailure(fmt.Errorf("sendMessage status %d", resp.StatusCode))
	}

	c.logger.Info("message sent", zap.String("target", target))
	return nil
}

// SendFile uploads a local file to the target chat via sendFileByUpload
// and returns the remote URL assigned by the platform.
func (c *Client) SendFile(ctx context.Context, target, filePath, fileName, caption string) (string, error) {
	url := fmt.Sprintf("%s/waInstance%s/sendFileByUpload/%s",
		c.cfg.MediaBaseURL, c.cfg.InstanceID, c.cfg.APIToken)

	file, err := os.Open(filePath)
	if err != nil {
		return "", apperrors.NewValidationError("file not readable", map[string]any{"path": filePath})
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(fileName))
	if err != nil {
		return "", apperrors.NewTransportFailure(err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", apperrors.NewTransportFailure(err)
	}
	_ = writer.WriteField("chatId", target)
	_ = writer.WriteField("fileName", fileName)
	if caption != "" {
		_ = writer.WriteField("caption", caption)
	}
	if err := writer.Close(); err != nil {
		return "", apperrors.NewTransportFailure(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return "", apperrors.NewTransportFailure(err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("send file failed", zap.String("target", target), zap.Error(err))
		return "", apperrors.NewTransportFailure(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		c.logger.Error("send file rejected",
			zap.String("target", target),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", body))
		return "", apperrors.NewTransportFailure(fmt.Errorf("sendFileByUpload status %d", resp.StatusCode))
	}

	var result sendFileResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", apperrors.NewTransportFailure(err)
	}

	c.logger.Info("file sent",
		zap.String("target", target),
		zap.String("file", fileName),
		zap.String("remote_url", result.URLFile))
	return result.URLFile, nil
}
