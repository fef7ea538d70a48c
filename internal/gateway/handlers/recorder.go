package handlers

import (
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/lingopal/lingopal-client/internal/audio"
	"github.com/lingopal/lingopal-client/internal/services"
)

func stateName(s audio.State) string {
	if s == audio.StateRecording {
		return "recording"
	}
	return "idle"
}

// GetRecorderState reports the capture lifecycle state.
func GetRecorderState(rec *audio.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"state": stateName(rec.State())})
	}
}

// StartRecording acquires the microphone and begins capturing.
func StartRecording(rec *audio.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := rec.Start(c.Context()); err != nil {
			var permErr *audio.PermissionError
			switch {
			case errors.As(err, &permErr):
				return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
					"error": "Microphone access denied",
				})
			case errors.Is(err, audio.ErrAlreadyRecording):
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{
					"error": "Recording already in progress",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"state": stateName(rec.State())})
	}
}

// StopRecording finalizes the capture and hands it to the conversation layer
// for the next send.
func StopRecording(rec *audio.Recorder, svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		recording, err := rec.Stop()
		if err != nil {
			if errors.Is(err, audio.ErrNotRecording) {
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{
					"error": "No recording in progress",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		svc.Conversation.SetRecording(recording)
		return c.JSON(fiber.Map{
			"state":   stateName(rec.State()),
			"bytes":   len(recording.Data),
			"preview": recording.PreviewPath,
		})
	}
}

// UploadRecording accepts a browser-captured audio blob instead of the local
// microphone, for UIs recording with MediaRecorder themselves.
func UploadRecording(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header, err := c.FormFile("audio")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Missing audio file",
			})
		}

		f, err := header.Open()
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Unreadable audio file",
			})
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		mimeType := header.Header.Get("Content-Type")
		if mimeType == "" {
			mimeType = "audio/webm"
		}
		svc.Conversation.SetRecording(&audio.Recording{
			Data:     data,
			MIMEType: mimeType,
		})
		return c.JSON(fiber.Map{"bytes": len(data)})
	}
}

// SendAudio uploads the pending recording for transcription and a reply.
func SendAudio(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := svc.Conversation.SendAudio(c.Context()); err != nil {
			switch {
			case errors.Is(err, services.ErrBusy):
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{
					"error": "An upload is already in progress",
				})
			case errors.Is(err, services.ErrNoRecording):
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "No recording to send",
				})
			}
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		return c.JSON(fiber.Map{
			"conversation_length": svc.Conversation.ConversationLength(),
			"messages":            svc.Conversation.Log().Snapshot(),
		})
	}
}
