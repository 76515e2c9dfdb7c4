package feed

import (
	"context"
	"time"

	"finledger/internal/core"
	"finledger/internal/log"
	"finledger/internal/remote"
)

// ChangePublisher is the broker-facing half of Client used by Publisher.
type ChangePublisher interface {
	PublishChange(ctx context.Context, msg *ChangeMessage) error
}

// Publisher decorates a remote.Store so every successful mutation emits a
// change notification. Publish failures are logged and swallowed: the store
// commit already happened and watchers were already notified, the feed is a
// best-effort side channel for downstream workers.
type Publisher struct {
	remote.Store

	client ChangePublisher
	logger *log.Logger
}

func NewPublisher(store remote.Store, client ChangePublisher, logger *log.Logger) *Publisher {
	return &Publisher{
		Store:  store,
		client: client,
		logger: logger.WithComponent(log.ComponentFeed),
	}
}

func (p *Publisher) Add(ctx context.Context, owner string, draft core.Draft) (core.Transaction, error) {
	txn, err := p.Store.Add(ctx, owner, draft)
	if err != nil {
		return core.Transaction{}, err
	}
	p.announce(OpAdd, txn.Owner, txn.ID)
	return txn, nil
}

func (p *Publisher) Update(ctx context.Context, id string, patch core.Patch) error {
	owner, err := p.ownerOf(ctx, id)
	if err != nil {
		return err
	}
	if err := p.Store.Update(ctx, id, patch); err != nil {
		return err
	}
	p.announce(OpUpdate, owner, id)
	return nil
}

func (p *Publisher) Delete(ctx context.Context, id string) error {
	owner, err := p.ownerOf(ctx, id)
	if err == remote.ErrNotFound {
		// Delete of an unknown id is a no-op, nothing to announce.
		return p.Store.Delete(ctx, id)
	}
	if err != nil {
		return err
	}
	if err := p.Store.Delete(ctx, id); err != nil {
		return err
	}
	p.announce(OpDelete, owner, id)
	return nil
}

func (p *Publisher) announce(op, owner, id string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout+time.Second)
		defer cancel()
		if err := p.client.PublishChange(ctx, NewChangeMessage(op, owner, id)); err != nil {
			p.logger.ErrorContext(ctx, "Failed to publish change notification",
				"error", err,
				"op", op,
				log.FieldOwner, owner,
				log.FieldTxnID, id)
		}
	}()
}

func (p *Publisher) ownerOf(ctx context.Context, id string) (string, error) {
	finder, ok := p.Store.(interface {
		Owner(ctx context.Context, id string) (string, error)
	})
	if !ok {
		return "", nil
	}
	return finder.Owner(ctx, id)
}
