// Package telegram publishes to a chat through the Bot API. Bots
// authenticate with a static token, so there is no OAuth flow.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/providers"
	"github.com/goliatone/go-social/transport"
)

const APIBaseURL = "https://api.telegram.org"

const MetadataChatID = "chat_id"

type Config struct {
	BotToken   string
	ChatID     string
	ParseMode  string
	APIBaseURL string
	Runtime    providers.Runtime
}

func ConfigFrom(cfg core.TelegramConfig, runtime providers.Runtime) Config {
	return Config{
		BotToken:  strings.TrimSpace(cfg.BotToken),
		ChatID:    strings.TrimSpace(cfg.ChatID),
		ParseMode: strings.TrimSpace(cfg.ParseMode),
		Runtime:   runtime,
	}
}

type Adapter struct {
	cfg Config
}

func New(cfg Config) *Adapter {
	cfg.Runtime = cfg.Runtime.Shared()
	cfg.APIBaseURL = strings.TrimRight(providers.FirstNonEmpty(cfg.APIBaseURL, APIBaseURL), "/")
	return &Adapter{cfg: cfg}
}

func (a *Adapter) Platform() core.Platform {
	return core.PlatformTelegram
}

func (a *Adapter) DefaultConnectionType() string {
	return core.ConnectionTypeBot
}

func (a *Adapter) Configured() bool {
	return a.cfg.BotToken != "" && a.cfg.ChatID != ""
}

// Standalone publishes with the configured bot and chat.
func (a *Adapter) Standalone(ctx context.Context) (core.Publisher, error) {
	if !a.Configured() {
		return nil, core.ConfigurationError(core.PlatformTelegram, "bot token and chat id are required")
	}
	return a.publisher(a.cfg.BotToken, a.cfg.ChatID), nil
}

// ForConnection prefers the connection's bot token and chat over the
// configured ones.
func (a *Adapter) ForConnection(ctx context.Context, creds core.ConnectionCredentials) (core.Publisher, error) {
	if creds.Platform != core.PlatformTelegram {
		return nil, core.PlatformMismatchError(core.PlatformTelegram, creds.Platform)
	}
	token := providers.FirstNonEmpty(strings.TrimSpace(creds.AccessToken), a.cfg.BotToken)
	if token == "" {
		return nil, core.CredentialsMissingError(core.PlatformTelegram, "access_token")
	}
	chatID := providers.FirstNonEmpty(creds.MetadataString(MetadataChatID), a.cfg.ChatID)
	if chatID == "" {
		return nil, core.CredentialsMissingError(core.PlatformTelegram, MetadataChatID)
	}
	return a.publisher(token, chatID), nil
}

func (a *Adapter) publisher(token, chatID string) *Publisher {
	return &Publisher{
		client:    a.cfg.Runtime.Client(core.PlatformTelegram),
		endpoint:  a.cfg.APIBaseURL + "/bot" + token,
		chatID:    chatID,
		parseMode: a.cfg.ParseMode,
	}
}

type Publisher struct {
	client    *transport.Client
	endpoint  string
	chatID    string
	parseMode string
}

func (p *Publisher) Platform() core.Platform {
	return core.PlatformTelegram
}

func (p *Publisher) ChatID() string {
	return p.chatID
}

func (p *Publisher) ShareText(ctx context.Context, caption string) (core.PostResult, error) {
	text, err := core.ValidateCaption(caption, core.TelegramMaxLength)
	if err != nil {
		return core.PostResult{}, err
	}
	return p.send(ctx, "sendMessage", map[string]any{"text": text})
}

// ShareURL sends the link on its own line so the client renders a preview.
func (p *Publisher) ShareURL(ctx context.Context, caption string, link string) (core.PostResult, error) {
	caption, err := core.ValidateCaption(caption, core.TelegramMaxLength)
	if err != nil {
		return core.PostResult{}, err
	}
	link, err = core.ValidateURL("url", link)
	if err != nil {
		return core.PostResult{}, err
	}
	text, err := core.ValidateCaption(caption+"\n"+link, core.TelegramMaxLength)
	if err != nil {
		return core.PostResult{}, err
	}
	return p.send(ctx, "sendMessage", map[string]any{"text": text})
}

func (p *Publisher) ShareImage(ctx context.Context, caption string, imageURL string) (core.PostResult, error) {
	return p.sendMedia(ctx, "sendPhoto", "photo", caption, imageURL)
}

func (p *Publisher) ShareVideo(ctx context.Context, caption string, videoURL string) (core.PostResult, error) {
	return p.sendMedia(ctx, "sendVideo", "video", caption, videoURL)
}

func (p *Publisher) sendMedia(ctx context.Context, method, field, caption, mediaURL string) (core.PostResult, error) {
	caption, err := core.ValidateCaption(caption, core.TelegramCaptionLength)
	if err != nil {
		return core.PostResult{}, err
	}
	mediaURL, err = core.ValidateURL(field+"_url", mediaURL)
	if err != nil {
		return core.PostResult{}, err
	}
	return p.send(ctx, method, map[string]any{field: mediaURL, "caption": caption})
}

func (p *Publisher) send(ctx context.Context, method string, payload map[string]any) (core.PostResult, error) {
	payload["chat_id"] = p.chatID
	if p.parseMode != "" {
		payload["parse_mode"] = p.parseMode
	}
	req, err := transport.JSONRequest(http.MethodPost, p.endpoint+"/"+method, payload)
	if err != nil {
		return core.PostResult{}, err
	}
	res, err := p.client.Do(ctx, req)
	if err != nil {
		return core.PostResult{}, err
	}
	raw := providers.DecodeRaw(res)
	if ok, _ := raw["ok"].(bool); !ok {
		message := providers.FirstNonEmpty(providers.String(raw, "description"), "telegram request was not accepted")
		return core.PostResult{}, core.ProviderError(core.PlatformTelegram, res.StatusCode, message, nil)
	}
	id, err := providers.RequireID(core.PlatformTelegram, providers.String(raw, "result", "message_id"))
	if err != nil {
		return core.PostResult{}, err
	}
	result := providers.PostResult(core.PlatformTelegram, id, raw)
	if username := providers.String(raw, "result", "chat", "username"); username != "" {
		result.URL = fmt.Sprintf("https://t.me/%s/%s", username, id)
	}
	return result, nil
}
