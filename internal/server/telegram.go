package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

const telegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// TelegramOptions enables the bot command webhook. Commands are only
// answered for ChatID, the same chat that receives notifications.
type TelegramOptions struct {
	Secret string
	ChatID string
}

func (o TelegramOptions) enabled() bool {
	return o.Secret != "" && o.ChatID != ""
}

type telegramUpdate struct {
	UpdateID int64            `json:"update_id"`
	Message  *telegramMessage `json:"message"`
}

type telegramMessage struct {
	Text string `json:"text"`
	Chat struct {
		ID int64 `json:"id"`
	} `json:"chat"`
}

// handleTelegram answers bot commands. Telegram retries anything that is
// not a 2xx, so ignored updates still get 200.
func (s *Server) handleTelegram(w http.ResponseWriter, r *http.Request) {
	secret := r.Header.Get(telegramSecretHeader)
	if subtle.ConstantTimeCompare([]byte(secret), []byte(s.opts.Telegram.Secret)) != 1 {
		writeText(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var update telegramUpdate
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&update); err != nil {
		writeText(w, http.StatusBadRequest, "invalid update")
		return
	}
	if update.Message == nil {
		writeText(w, http.StatusOK, "ignored")
		return
	}
	if strconv.FormatInt(update.Message.Chat.ID, 10) != s.opts.Telegram.ChatID {
		s.logger.Warn("telegram command from foreign chat", "chat_id", update.Message.Chat.ID)
		writeText(w, http.StatusOK, "ignored")
		return
	}

	switch telegramCommand(update.Message.Text) {
	case "/status":
		report := s.buildReport(r.Context())
		s.dispatcher.Dispatch("telegram", report.Render())
	case "/help", "/start":
		s.dispatcher.Dispatch("telegram", "commands: /status")
	default:
		writeText(w, http.StatusOK, "ignored")
		return
	}
	writeText(w, http.StatusOK, "ok")
}

// telegramCommand extracts "/cmd" from "/cmd@botname args".
func telegramCommand(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}
	cmd, _, _ := strings.Cut(fields[0], "@")
	return strings.ToLower(cmd)
}
