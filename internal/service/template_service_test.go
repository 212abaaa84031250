package service

import (
	"context"
	"testing"

	"github.com/repairflow/repairflow/internal/domain"
)

func newTemplateFixture() (*TemplateService, *fakeTemplateRepo) {
	templates := &fakeTemplateRepo{}
	return NewTemplateService(templates, &fakeFrequentRepo{}), templates
}

func fieldKeys(fields []domain.TemplateField) map[string]string {
	keys := make(map[string]string, len(fields))
	for _, f := range fields {
		keys[f.Label] = f.Key
	}
	return keys
}

func TestTemplateCreateAssignsPositionalKeys(t *testing.T) {
	service, _ := newTemplateFixture()

	template, err := service.Create(context.Background(), TemplateInput{
		Name:   "冷氣報修",
		Labels: []string{"姓名", "電話", "地址"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	keys := fieldKeys(template.Fields)
	if keys["姓名"] != "field_1" || keys["電話"] != "field_2" || keys["地址"] != "field_3" {
		t.Errorf("keys = %v", keys)
	}
}

func TestTemplateUpdateKeepsSurvivingKeys(t *testing.T) {
	service, _ := newTemplateFixture()

	template, err := service.Create(context.Background(), TemplateInput{
		Name:   "冷氣報修",
		Labels: []string{"姓名", "電話", "地址"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Drop 電話, move 地址 ahead of 姓名, and append a new field. Surviving
	// fields must keep the keys they were created with.
	updated, err := service.Update(context.Background(), template.ID, TemplateInput{
		Labels: []string{"地址", "姓名", "備註"},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	keys := fieldKeys(updated.Fields)
	if keys["姓名"] != "field_1" {
		t.Errorf("姓名 key = %q, want field_1", keys["姓名"])
	}
	if keys["地址"] != "field_3" {
		t.Errorf("地址 key = %q, want field_3", keys["地址"])
	}
	if keys["備註"] != "field_4" {
		t.Errorf("備註 key = %q, want field_4", keys["備註"])
	}
}

func TestTemplateUpdateSwapsFieldInFreshSlot(t *testing.T) {
	service, _ := newTemplateFixture()

	template, err := service.Create(context.Background(), TemplateInput{
		Name:   "冷氣報修",
		Labels: []string{"姓名", "電話"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Replacing 電話 with 地址 in one update must not hand 地址 the dropped
	// field_2 slot, or stored frequent values would bleed across fields.
	updated, err := service.Update(context.Background(), template.ID, TemplateInput{
		Labels: []string{"姓名", "地址"},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	keys := fieldKeys(updated.Fields)
	if keys["地址"] != "field_3" {
		t.Errorf("地址 key = %q, want field_3", keys["地址"])
	}
}
