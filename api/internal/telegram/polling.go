package telegram

import (
	"context"
	"errors"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

const (
	baseDelay = 1 * time.Second
	maxDelay  = 15 * time.Second
)

// RetryDelay picks a pause after a failed getUpdates call.
func RetryDelay(err error) time.Duration {
	if err == nil {
		return 0
	}
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) && tgErr.RetryAfter > 0 {
		return clampDelay(time.Duration(tgErr.RetryAfter) * time.Second)
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") {
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return clampDelay(time.Duration(n) * time.Second)
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	return baseDelay
}

func clampDelay(d time.Duration) time.Duration {
	if d < baseDelay {
		return baseDelay
	}
	if d > maxDelay {
		return maxDelay
	}
	return d
}

// Poll long-polls getUpdates until ctx is done. Updates are handled in order.
func Poll(ctx context.Context, bot Bot, timeoutSec int, handle func(context.Context, tgbotapi.Update)) {
	offset := 0
	for {
		if ctx.Err() != nil {
			log.Info().Msg("telegram: polling stopped")
			return
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = timeoutSec

		updates, err := bot.GetUpdates(u)
		if err != nil {
			d := RetryDelay(err)
			log.Warn().Err(err).Dur("retry_in", d).Msg("telegram: polling error")
			if !sleep(ctx, d) {
				return
			}
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			handle(ctx, upd)
		}
		if len(updates) == 0 && !sleep(ctx, 200*time.Millisecond) {
			return
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
