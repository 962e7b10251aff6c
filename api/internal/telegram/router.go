package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"docai-gateway/api/internal/ingest"
	"docai-gateway/api/internal/ocr"
	"docai-gateway/api/internal/ocr/types"
	"docai-gateway/api/internal/util"
)

// Bot is the part of the Telegram API the router talks to.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

type Analyzer interface {
	RunWith(ctx context.Context, eng ocr.VisionEngine, src ingest.Source) (types.AnalysisResult, error)
}

const maxMessageRunes = 3900

type Router struct {
	Bot      Bot
	Analyzer Analyzer
	Engines  *ocr.Engines
	Manager  *ocr.Manager
	Files    *Downloader

	// empty allows every chat
	allowed map[int64]bool
}

func NewRouter(bot Bot, an Analyzer, engines *ocr.Engines, manager *ocr.Manager, files *Downloader, allowedChats []int64) *Router {
	allowed := make(map[int64]bool, len(allowedChats))
	for _, id := range allowedChats {
		allowed[id] = true
	}
	return &Router{
		Bot:      bot,
		Analyzer: an,
		Engines:  engines,
		Manager:  manager,
		Files:    files,
		allowed:  allowed,
	}
}

func (r *Router) chatAllowed(chatID int64) bool {
	return len(r.allowed) == 0 || r.allowed[chatID]
}

func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	cid := msg.Chat.ID
	if !r.chatAllowed(cid) {
		log.Warn().Int64("chat_id", cid).Msg("telegram: chat not allowed")
		r.send(cid, "Bu sohbet için yetkiniz yok.")
		return
	}

	switch {
	case msg.IsCommand():
		r.HandleCommand(ctx, msg)
	case len(msg.Photo) > 0:
		ph := msg.Photo[len(msg.Photo)-1]
		r.acceptImage(ctx, cid, ph.FileID, "", "")
	case msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/"):
		r.acceptImage(ctx, cid, msg.Document.FileID, msg.Document.FileName, msg.Document.MimeType)
	default:
		r.send(cid, "Analiz için bir fiş veya fatura fotoğrafı gönderin.")
	}
}

func (r *Router) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	switch msg.Command() {
	case "start":
		r.send(cid, "Fiş veya fatura fotoğrafı gönderin, tarih, firma, ücret ve vergi bilgilerini çıkarayım.\nKomutlar: /health, /engine")
	case "health":
		eng := r.Manager.Get(cid)
		ok, err := eng.Available(ctx)
		if err != nil || !ok {
			r.send(cid, fmt.Sprintf("⚠️ %s modeli erişilemez (%s)", eng.Name(), eng.GetModel()))
			return
		}
		r.send(cid, fmt.Sprintf("✅ OK: %s (%s)", eng.Name(), eng.GetModel()))
	case "engine":
		r.handleEngineCommand(cid, msg.CommandArguments())
	default:
		r.send(cid, "Bilinmeyen komut")
	}
}

// handleEngineCommand switches the vision engine of one chat.
//
//	/engine
//	/engine gemini
func (r *Router) handleEngineCommand(chatID int64, args string) {
	name := strings.TrimSpace(args)
	if name == "" {
		cur := r.Manager.Get(chatID)
		r.send(chatID, fmt.Sprintf("Geçerli motor: %s (%s)\nKullanılabilir: %s\nKullanım: /engine <ad>",
			cur.Name(), cur.GetModel(), strings.Join(r.Engines.Names(), ", ")))
		return
	}
	eng, err := r.Engines.GetEngine(name)
	if err != nil {
		r.send(chatID, "❌ "+err.Error())
		return
	}
	r.Manager.Set(chatID, eng)
	r.send(chatID, fmt.Sprintf("✅ Motor: %s (%s)", eng.Name(), eng.GetModel()))
}

func (r *Router) acceptImage(ctx context.Context, chatID int64, fileID, name, contentType string) {
	logger := log.With().Int64("chat_id", chatID).Str("file_id", fileID).Logger()

	f, err := r.Files.Fetch(ctx, r.Bot, fileID, name, contentType)
	if err != nil {
		logger.Error().Err(err).Msg("telegram: file download failed")
		r.send(chatID, "Dosya indirilemedi, lütfen tekrar gönderin.")
		return
	}
	if !util.IsImage(f.Data) {
		r.send(chatID, "Gönderilen dosya bir görsel değil.")
		return
	}

	r.send(chatID, "Fotoğraf alındı, analiz ediliyor…")
	eng := r.Manager.Get(chatID)
	res, err := r.Analyzer.RunWith(logger.WithContext(ctx), eng, ingest.Source{File: f})
	if err != nil {
		if ingest.IsValidationError(err) {
			r.send(chatID, "Görsel işlenemedi: "+err.Error())
			return
		}
		logger.Error().Err(err).Str("engine", eng.Name()).Msg("telegram: analysis failed")
		r.send(chatID, "Analiz başarısız oldu, lütfen daha sonra tekrar deneyin.")
		return
	}
	r.SendResult(chatID, res)
}

// SendResult replies with the four extracted fields.
func (r *Router) SendResult(chatID int64, res types.AnalysisResult) {
	var b strings.Builder
	b.WriteString("🧾 Analiz sonucu\n\n")
	for _, f := range []struct {
		label string
		v     *string
	}{
		{"Tarih", res.Tarih},
		{"Firma", res.Firma},
		{"Ücret", res.Ucret},
		{"Vergi Miktarı", res.VergiMiktari},
	} {
		v := types.NotFound
		if f.v != nil {
			v = *f.v
		}
		fmt.Fprintf(&b, "%s: %s\n", f.label, v)
	}
	r.send(chatID, util.Truncate(b.String(), maxMessageRunes))
}

func (r *Router) send(chatID int64, text string) {
	if _, err := r.Bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("telegram: send failed")
	}
}
