package chat

import (
	"context"
	"fmt"
	"log"
	"slices"
	"strings"

	"github.com/standardbeagle/devchat/internal/page"
)

// Defaults for Service.
const (
	DefaultModel       = "gpt-3.5-turbo"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 500
)

// DefaultModels is the model list offered when none is configured.
var DefaultModels = []string{"gpt-3.5-turbo", "gpt-4", "gpt-4-turbo-preview"}

const systemPreamble = "You are an AI assistant helping with web development."

// Request is a chat question from the panel.
type Request struct {
	Message  string    `json:"message"`
	PageInfo page.Info `json:"pageInfo"`
	Model    string    `json:"model,omitempty"`
	TabID    int       `json:"tabId"`
}

// ServiceConfig configures a Service. Zero fields take the package defaults.
type ServiceConfig struct {
	Model        string
	Models       []string
	Temperature  float64
	MaxTokens    int
	HistoryLimit int
}

// Service answers chat requests with per-tab history.
type Service struct {
	provider Provider
	history  *History
	config   ServiceConfig
}

// NewService creates a Service backed by provider.
func NewService(provider Provider, config ServiceConfig) *Service {
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if len(config.Models) == 0 {
		config.Models = slices.Clone(DefaultModels)
	}
	if !slices.Contains(config.Models, config.Model) {
		config.Models = append([]string{config.Model}, config.Models...)
	}
	if config.Temperature <= 0 {
		config.Temperature = DefaultTemperature
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = DefaultMaxTokens
	}
	return &Service{
		provider: provider,
		history:  NewHistory(config.HistoryLimit),
		config:   config,
	}
}

// Models returns the selectable model names.
func (s *Service) Models() []string {
	return slices.Clone(s.config.Models)
}

// History exposes the per-tab conversations.
func (s *Service) History() *History {
	return s.history
}

// Provider returns the backing provider.
func (s *Service) Provider() Provider {
	return s.provider
}

// Ask sends req.Message with the tab's history and returns the reply text.
// A failed call leaves the history as it was before the request.
func (s *Service) Ask(ctx context.Context, req Request) (string, error) {
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return "", ErrEmptyMessage
	}
	model := req.Model
	if model == "" {
		model = s.config.Model
	}
	if !slices.Contains(s.config.Models, model) {
		return "", fmt.Errorf("%w: %s", ErrUnknownModel, model)
	}
	if s.provider == nil || !s.provider.IsConfigured() {
		return "", ErrNoAPIKey
	}

	conv := s.history.Conversation(req.TabID)
	conv.Lock()
	defer conv.Unlock()

	added := 0
	if conv.Len() == 0 {
		conv.Append(Message{Role: RoleSystem, Content: SystemPrompt(req.PageInfo)})
		added++
	}
	conv.Append(Message{Role: RoleUser, Content: req.Message})
	added++

	resp, err := s.provider.Chat(ctx, Options{
		Model:       model,
		Temperature: s.config.Temperature,
		MaxTokens:   s.config.MaxTokens,
	}, conv.Messages())
	if err != nil {
		for range added {
			conv.DropLast()
		}
		log.Printf("[WARN] chat: tab %d: %v", req.TabID, err)
		return "", err
	}

	conv.Append(Message{Role: RoleAssistant, Content: resp.Content})
	conv.Trim()
	return resp.Content, nil
}

// SystemPrompt is the first message of every tab conversation.
func SystemPrompt(info page.Info) string {
	return systemPreamble + "\n" + info.Summary()
}

// ErrorText renders err the way the panel shows failed chat requests.
func ErrorText(err error) string {
	return "Error: " + err.Error()
}
