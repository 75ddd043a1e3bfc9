package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vyralhq/vyral-backend/internal/models"
)

const (
	defaultTranscribeLimit = 10

	transcriptionSystemPrompt = "You are a TikTok video transcription generator. Generate realistic, natural-sounding transcriptions in Brazilian Portuguese for TikTok product review videos. The transcription should sound like a real person talking casually about the product. Keep it between 100-200 words. Return ONLY the transcription text, no formatting."

	scriptSystemPrompt = "You are a viral TikTok video script creator. Create detailed, engaging video scripts with scenes, camera angles, transitions, and text overlays. Format as a structured storyboard. Write in Portuguese (BR)."

	defaultScriptPrompt = "Create a viral TikTok product video script"
)

// VideoStore is the subset of the store the transcription flow uses.
type VideoStore interface {
	ListVideosWithoutTranscription(ctx context.Context, limit int) ([]models.ViralVideo, error)
	GetVideo(ctx context.Context, videoID string) (*models.ViralVideo, error)
	SetTranscription(ctx context.Context, videoID, transcription string) error
}

// TranscribeResult summarizes one transcription batch.
type TranscribeResult struct {
	Count   int    `json:"count"`
	Message string `json:"message"`
}

// Script is a generated video storyboard. OperationName exists for
// polling compatibility with clients that expect async generation.
type Script struct {
	Script        string `json:"script"`
	Message       string `json:"message"`
	OperationName string `json:"operationName"`
}

// Service drives the AI features on top of the gateway
type Service struct {
	gateway Gateway
	store   VideoStore
}

// NewService creates a new LLM-backed service
func NewService(gateway Gateway, store VideoStore) *Service {
	return &Service{gateway: gateway, store: store}
}

// TranscribeVideos fills in missing transcriptions. With a videoID, only
// that video is processed; otherwise up to limit untranscribed videos.
// Gateway failures skip the video and the batch continues.
func (s *Service) TranscribeVideos(ctx context.Context, videoID string, limit int) (*TranscribeResult, error) {
	videos, err := s.videosToTranscribe(ctx, videoID, limit)
	if err != nil {
		return nil, err
	}
	if len(videos) == 0 {
		return &TranscribeResult{Count: 0, Message: "Nenhum vídeo para transcrever."}, nil
	}

	transcribed := 0
	for _, video := range videos {
		transcription, err := s.gateway.Complete(ctx, transcriptionSystemPrompt, transcriptionUserPrompt(video))
		if err != nil {
			logrus.Errorf("Failed to transcribe video %s: %v", video.ID, err)
			continue
		}
		if transcription == "" {
			continue
		}

		if err := s.store.SetTranscription(ctx, video.ID, transcription); err != nil {
			logrus.Errorf("Failed to save transcription for video %s: %v", video.ID, err)
			continue
		}
		transcribed++
	}

	return &TranscribeResult{
		Count:   transcribed,
		Message: fmt.Sprintf("%d vídeos transcritos com sucesso!", transcribed),
	}, nil
}

func (s *Service) videosToTranscribe(ctx context.Context, videoID string, limit int) ([]models.ViralVideo, error) {
	if videoID != "" {
		video, err := s.store.GetVideo(ctx, videoID)
		if err != nil {
			return nil, err
		}
		if video == nil {
			return nil, nil
		}
		return []models.ViralVideo{*video}, nil
	}

	if limit <= 0 {
		limit = defaultTranscribeLimit
	}
	return s.store.ListVideosWithoutTranscription(ctx, limit)
}

func transcriptionUserPrompt(video models.ViralVideo) string {
	title := video.Title
	if title == "" {
		title = "Review de produto"
	}
	product := video.ProductName
	if product == "" {
		product = "produto viral"
	}
	creator := video.CreatorName
	if creator == "" {
		creator = "@creator"
	}

	hashtags := "[]"
	if len(video.Hashtags) > 0 {
		if data, err := json.Marshal(video.Hashtags); err == nil {
			hashtags = string(data)
		}
	}

	return fmt.Sprintf("Generate a realistic TikTok video transcription for: Title: %q, Product: %q, Creator: %q, Hashtags: %s",
		title, product, creator, hashtags)
}

// GenerateScript produces a video storyboard for the prompt.
func (s *Service) GenerateScript(ctx context.Context, prompt string) (*Script, error) {
	if prompt == "" {
		prompt = defaultScriptPrompt
	}

	script, err := s.gateway.Complete(ctx, scriptSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	return &Script{
		Script:        script,
		Message:       "Script de vídeo gerado com sucesso! Use este roteiro para criar seu vídeo viral.",
		OperationName: fmt.Sprintf("op_%d", time.Now().UnixMilli()),
	}, nil
}
