package persistence

import (
	"context"
	"testing"
)

func TestPostgresPingWithoutPool(t *testing.T) {
	p := &Postgres{}
	if err := p.Ping(context.Background()); err == nil {
		t.Error("Ping without a pool should fail")
	}

	var nilPg *Postgres
	if err := nilPg.Ping(context.Background()); err == nil {
		t.Error("Ping on nil receiver should fail")
	}
}
