package services

import (
	"context"
	"log"
	"sync"
	"time"

	"dietChallengeAPI/internal/notification"
)

// TokenStore resolves a user's registered devices.
type TokenStore interface {
	TokensForUser(ctx context.Context, userID string) ([]notification.DeviceToken, error)
}

// Notifier queues a push for best-effort delivery.
type Notifier interface {
	Notify(ctx context.Context, push notification.Push)
}

// NotificationDispatcher sends pushes from a fixed pool of workers.
type NotificationDispatcher struct {
	tokens       TokenStore
	pushProvider notification.PushProvider
	workers      int
	jobQueue     chan notification.Push
	stopChan     chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

func NewNotificationDispatcher(tokens TokenStore, workers int) *NotificationDispatcher {
	if workers <= 0 {
		workers = 5
	}
	d := &NotificationDispatcher{
		tokens:   tokens,
		workers:  workers,
		jobQueue: make(chan notification.Push, 100),
		stopChan: make(chan struct{}),
	}
	d.startWorkers()
	return d
}

// SetPushProvider injects the FCM provider. Without one, pushes are dropped with a log line.
func (d *NotificationDispatcher) SetPushProvider(provider notification.PushProvider) {
	d.pushProvider = provider
}

func (d *NotificationDispatcher) startWorkers() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

func (d *NotificationDispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case push := <-d.jobQueue:
			d.processJob(push)
		case <-d.stopChan:
			return
		}
	}
}

func (d *NotificationDispatcher) processJob(push notification.Push) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if d.pushProvider == nil {
		log.Printf("Skipping push %s for user %s: no provider", push.Type, push.UserID)
		return
	}

	tokens, err := d.tokens.TokensForUser(ctx, push.UserID)
	if err != nil {
		log.Printf("Push %s for user %s: failed to load tokens: %v", push.Type, push.UserID, err)
		return
	}
	if len(tokens) == 0 {
		return
	}

	if err := d.pushProvider.SendPush(ctx, tokens, push.Title, push.Body, push.Data); err != nil {
		log.Printf("Push %s failed for user %s: %v", push.Type, push.UserID, err)
	}
}

// Notify queues the push, giving up after five seconds when the queue stays full.
func (d *NotificationDispatcher) Notify(ctx context.Context, push notification.Push) {
	select {
	case d.jobQueue <- push:
	case <-ctx.Done():
		log.Printf("Failed to queue push %s for user %s: %v", push.Type, push.UserID, ctx.Err())
	case <-time.After(5 * time.Second):
		log.Printf("Failed to queue push %s for user %s: queue full", push.Type, push.UserID)
	}
}

// Stop halts the workers. Queued pushes that were not picked up are dropped.
func (d *NotificationDispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stopChan) })
	d.wg.Wait()
}
