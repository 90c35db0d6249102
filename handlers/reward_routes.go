package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"yoma-api/middleware"
	"yoma-api/services"
)

func SetupRewardRoutes(router fiber.Router, rewards *services.RewardService, wallets *services.WalletService, streamInterval time.Duration) {
	user := middleware.RequireUser()

	router.Get("/reward/transactions", user, func(c *fiber.Ctx) error {
		id, err := caller(c)
		if err != nil {
			return err
		}
		since, err := queryTime(c, "since")
		if err != nil {
			return err
		}
		items, err := rewards.ListTransactions(c.UserContext(), id.UserID, since)
		if err != nil {
			return err
		}
		return c.JSON(items)
	})

	router.Get("/reward/stream", user, streamRewards(rewards, streamInterval))

	router.Get("/wallet", user, func(c *fiber.Ctx) error {
		id, err := caller(c)
		if err != nil {
			return err
		}
		wallet, err := wallets.GetWallet(c.UserContext(), id.UserID)
		if err != nil {
			return err
		}
		return c.JSON(wallet)
	})
}

// streamRewards sends the caller's ledger changes as server-sent events.
// Each poll emits the entries updated since the previous one, so an entry
// shows up when it is scheduled and again when the provider settles it.
func streamRewards(rewards *services.RewardService, interval time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := caller(c)
		if err != nil {
			return err
		}
		ctx := c.UserContext()
		done := c.Context().Done()
		logger := zerolog.Ctx(ctx)

		c.Set(fiber.HeaderContentType, "text/event-stream")
		c.Set(fiber.HeaderCacheControl, "no-cache")
		c.Set(fiber.HeaderConnection, "keep-alive")
		c.Set("X-Accel-Buffering", "no")

		c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			since := time.Now().UTC()
			_, _ = w.WriteString(":\n\n")
			if err := w.Flush(); err != nil {
				return
			}

			for {
				select {
				case <-done:
					return
				case <-ticker.C:
				}

				items, err := rewards.ListTransactions(ctx, id.UserID, &since)
				if err != nil {
					logger.Warn().Err(err).Msg("reward stream poll failed")
					continue
				}
				if len(items) == 0 {
					_, _ = w.WriteString(":\n\n")
				}
				// Newest first; send oldest first.
				for i := len(items) - 1; i >= 0; i-- {
					payload, err := json.Marshal(items[i])
					if err != nil {
						continue
					}
					fmt.Fprintf(w, "event: reward\ndata: %s\n\n", payload)
					if items[i].UpdatedAt.After(since) {
						since = items[i].UpdatedAt
					}
				}
				if err := w.Flush(); err != nil {
					// Client went away.
					return
				}
			}
		})
		return nil
	}
}
