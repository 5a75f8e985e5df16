package services

import (
	"errors"
	"testing"
	"time"
)

func TestPreviewStorePutGet(t *testing.T) {
	store := NewPreviewStore(time.Minute)
	token := store.Put(&ImportPreview{OwnerID: 1, SchoolID: 2})

	preview, err := store.Get(token, 1)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if preview.SchoolID != 2 {
		t.Errorf("SchoolID = %d", preview.SchoolID)
	}
}

func TestPreviewStoreOwnerCheck(t *testing.T) {
	store := NewPreviewStore(time.Minute)
	token := store.Put(&ImportPreview{OwnerID: 1})

	if _, err := store.Get(token, 99); !errors.Is(err, ErrPreviewNotOwned) {
		t.Errorf("Get() by wrong owner = %v, want ErrPreviewNotOwned", err)
	}
}

func TestPreviewStoreExpiry(t *testing.T) {
	store := NewPreviewStore(-time.Second)
	token := store.Put(&ImportPreview{OwnerID: 1})

	if _, err := store.Get(token, 1); !errors.Is(err, ErrPreviewNotFound) {
		t.Errorf("Get() after expiry = %v, want ErrPreviewNotFound", err)
	}
}

func TestPreviewStoreDiscard(t *testing.T) {
	store := NewPreviewStore(time.Minute)
	token := store.Put(&ImportPreview{OwnerID: 1})

	// Wrong owner cannot discard.
	store.Discard(token, 99)
	if _, err := store.Get(token, 1); err != nil {
		t.Fatalf("preview removed by non-owner: %v", err)
	}

	store.Discard(token, 1)
	if _, err := store.Get(token, 1); !errors.Is(err, ErrPreviewNotFound) {
		t.Errorf("Get() after discard = %v, want ErrPreviewNotFound", err)
	}

	// Discard is idempotent.
	store.Discard(token, 1)
}

func TestPreviewStoreUnknownToken(t *testing.T) {
	store := NewPreviewStore(time.Minute)
	if _, err := store.Get("no-such-token", 1); !errors.Is(err, ErrPreviewNotFound) {
		t.Errorf("Get() = %v, want ErrPreviewNotFound", err)
	}
}
