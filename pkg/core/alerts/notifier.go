/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package alerts

import (
	"context"
	"sync"
	"time"

	"github.com/polewatch/polewatch/pkg/db"
	"github.com/polewatch/polewatch/pkg/logger"
	"github.com/polewatch/polewatch/pkg/models"
)

const defaultTimeout = 10 * time.Second

// Broadcaster delivers the live copy of an alert to every connection.
type Broadcaster interface {
	BroadcastAll(event string, payload any)
}

// Notifier implements AlertService. Each alert is delivered on its own
// goroutine with a bounded timeout detached from the triggering handler,
// so a slow database never stalls event dispatch. The stored copy goes
// to users holding the view_notification capability; the live copy is
// broadcast to everyone regardless of how the stored write went.
type Notifier struct {
	db          db.Service
	broadcaster Broadcaster
	timeout     time.Duration
	logger      logger.Logger

	wg sync.WaitGroup
}

// NewNotifier creates a Notifier. A non-positive timeout falls back to
// ten seconds.
func NewNotifier(dbService db.Service, broadcaster Broadcaster, timeout time.Duration, log logger.Logger) *Notifier {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Notifier{
		db:          dbService,
		broadcaster: broadcaster,
		timeout:     timeout,
		logger:      log,
	}
}

// Raise schedules the alert for delivery and returns immediately.
func (n *Notifier) Raise(ctx context.Context, alert *Alert) {
	n.wg.Add(1)

	go func() {
		defer n.wg.Done()

		// Detached from the handler's context: presence cleanup must not
		// cancel an alert already in flight.
		deliveryCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
		defer cancel()

		n.deliver(deliveryCtx, alert)
	}()
}

// Close waits for in-flight deliveries. Each delivery is bounded by the
// notifier timeout, so Close is too.
func (n *Notifier) Close() {
	n.wg.Wait()
}

func (n *Notifier) deliver(ctx context.Context, alert *Alert) {
	users, err := n.db.ListActiveUsersWithCapability(ctx, db.CapabilityViewNotification)
	if err != nil {
		n.logger.Error().
			Err(err).
			Str("pole_code", alert.PoleCode).
			Msg("Failed to resolve alert recipients")
	}

	if len(users) > 0 {
		userIDs := make([]int64, 0, len(users))
		for _, user := range users {
			userIDs = append(userIDs, user.ID)
		}

		notification := &models.Notification{
			UserIDs:      userIDs,
			PoleRouterIP: alert.RouterIP,
			PoleCode:     alert.PoleCode,
			Description:  alert.Description(),
			Note:         alert.Note(),
		}

		if err := n.db.WriteNotifications(ctx, []*models.Notification{notification}); err != nil {
			n.logger.Error().
				Err(err).
				Str("pole_code", alert.PoleCode).
				Str("description", alert.Description()).
				Msg("Failed to write notifications")
		}
	}

	// The live broadcast goes out even when the stored write failed or
	// there was nobody to store it for.
	n.broadcaster.BroadcastAll(models.EventLiveNotification, models.LiveNotification{
		Title:   alert.Title,
		Message: alert.Message,
	})

	n.logger.Debug().
		Str("kind", string(alert.Kind)).
		Str("pole_code", alert.PoleCode).
		Int("recipients", len(users)).
		Msg("Alert delivered")
}
