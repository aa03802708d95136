package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// Document pairs a decoded entity with its ID and write timestamp.
type Document[T any] struct {
	ID         string
	Data       T
	UpdateTime time.Time
}

// Collection is a typed view over one Firestore collection. Entities are
// encoded and decoded through Firestore's struct tags.
type Collection[T any] struct {
	provider *Provider
	name     string
}

// NewCollection binds a typed collection to the shared provider.
func NewCollection[T any](provider *Provider, name string) *Collection[T] {
	return &Collection[T]{provider: provider, name: strings.TrimSpace(name)}
}

// Get reads and decodes a single document.
func (c *Collection[T]) Get(ctx context.Context, id string) (Document[T], error) {
	ref, err := c.Doc(ctx, id)
	if err != nil {
		return Document[T]{}, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		return Document[T]{}, WrapError(c.op("get"), err)
	}
	return c.decode(snap)
}

// Put upserts value under the given document ID.
func (c *Collection[T]) Put(ctx context.Context, id string, value T) error {
	ref, err := c.Doc(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Set(ctx, value); err != nil {
		return WrapError(c.op("put"), err)
	}
	return nil
}

// Select runs a query over the collection. The build func may be nil, in
// which case the whole collection is read.
func (c *Collection[T]) Select(ctx context.Context, build func(firestore.Query) firestore.Query) ([]Document[T], error) {
	client, err := c.client(ctx)
	if err != nil {
		return nil, err
	}
	query := client.Collection(c.name).Query
	if build != nil {
		query = build(query)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var out []Document[T]
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, WrapError(c.op("select"), err)
		}
		doc, err := c.decode(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
}

// Doc resolves the document reference, for use inside transactions.
func (c *Collection[T]) Doc(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	if strings.TrimSpace(id) == "" {
		return nil, WrapError(c.op("doc"), errors.New("firestore: document id is required"))
	}
	client, err := c.client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(c.name).Doc(id), nil
}

func (c *Collection[T]) client(ctx context.Context) (*firestore.Client, error) {
	if c == nil || c.provider == nil {
		return nil, WrapError(c.op("client"), errors.New("firestore: provider is nil"))
	}
	if c.name == "" {
		return nil, WrapError(c.op("client"), errors.New("firestore: collection name is required"))
	}
	return c.provider.Client(ctx)
}

func (c *Collection[T]) decode(snap *firestore.DocumentSnapshot) (Document[T], error) {
	var data T
	if err := snap.DataTo(&data); err != nil {
		return Document[T]{}, fmt.Errorf("firestore: decode %s/%s: %w", c.name, snap.Ref.ID, err)
	}
	return Document[T]{ID: snap.Ref.ID, Data: data, UpdateTime: snap.UpdateTime}, nil
}

func (c *Collection[T]) op(action string) string {
	if c != nil && c.name != "" {
		return c.name + "." + action
	}
	return "firestore." + action
}
