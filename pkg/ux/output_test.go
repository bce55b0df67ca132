// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"strings"
	"testing"
)

func newTestPrinter(level PersonalityLevel) (*Printer, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return &Printer{Out: &out, Err: &errOut, Level: level, Precision: 4}, &out, &errOut
}

// =============================================================================
// Icon.Render Tests
// =============================================================================

func TestIcon_Render(t *testing.T) {
	for _, icon := range []Icon{IconSuccess, IconWarning, IconError, IconPending, IconStar} {
		if !strings.Contains(icon.Render(), string(icon)) {
			t.Errorf("Render() of %q lost the glyph", icon)
		}
	}
	for _, icon := range []Icon{IconArrow, IconBullet} {
		if got := icon.Render(); got != string(icon) {
			t.Errorf("expected %q for %q, got %q", string(icon), icon, got)
		}
	}
}

// =============================================================================
// Printer Tests
// =============================================================================

func TestPrinter_Title(t *testing.T) {
	p, out, _ := newTestPrinter(PersonalityMachine)
	p.Title("Run")
	if out.Len() != 0 {
		t.Errorf("expected no output in machine mode, got %q", out.String())
	}

	p, out, _ = newTestPrinter(PersonalityFull)
	p.Title("Run")
	if !strings.Contains(out.String(), "Run") {
		t.Errorf("expected title in full mode, got %q", out.String())
	}
}

func TestPrinter_Messages_MachineMode(t *testing.T) {
	p, out, errOut := newTestPrinter(PersonalityMachine)

	p.Success("saved")
	p.Warning("slow")
	p.Error("failed")
	p.Info("note")

	if got, want := out.String(), "OK: saved\nnote\n"; got != want {
		t.Errorf("stdout = %q, want %q", got, want)
	}
	if got, want := errOut.String(), "WARN: slow\nERROR: failed\n"; got != want {
		t.Errorf("stderr = %q, want %q", got, want)
	}
}

func TestPrinter_Messages_MinimalMode(t *testing.T) {
	p, out, errOut := newTestPrinter(PersonalityMinimal)

	p.Success("saved")
	p.Warning("slow")
	p.Error("failed")

	want := "✓ saved\n⚠ slow\n✗ failed\n"
	if got := out.String(); got != want {
		t.Errorf("stdout = %q, want %q", got, want)
	}
	if errOut.Len() != 0 {
		t.Errorf("expected empty stderr, got %q", errOut.String())
	}
}

func TestPrinter_Messages_FullMode(t *testing.T) {
	p, out, _ := newTestPrinter(PersonalityFull)

	p.Success("saved")
	p.Info("note")

	for _, want := range []string{"saved", "note", "│"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q: %q", want, out.String())
		}
	}
}

func TestPrinter_NilErrFallsBackToOut(t *testing.T) {
	var out bytes.Buffer
	p := &Printer{Out: &out, Level: PersonalityMachine}
	p.Error("boom")
	if got := out.String(); got != "ERROR: boom\n" {
		t.Errorf("got %q", got)
	}
}

func TestPrinter_Box(t *testing.T) {
	p, out, _ := newTestPrinter(PersonalityMachine)
	p.Box("Title", "content")
	if got := out.String(); got != "Title: content\n" {
		t.Errorf("got %q", got)
	}

	p, out, _ = newTestPrinter(PersonalityFull)
	p.Box("Title", "content")
	got := out.String()
	if !strings.Contains(got, "Title") || !strings.Contains(got, "content") {
		t.Errorf("box missing text: %q", got)
	}
	if !strings.Contains(got, "╭") {
		t.Errorf("expected rounded border: %q", got)
	}
}

func TestPrinter_ProgressBar(t *testing.T) {
	p, _, _ := newTestPrinter(PersonalityMachine)
	if got := p.ProgressBar(5, 10, 20); got != "5/10" {
		t.Errorf("machine ProgressBar = %q", got)
	}

	p, _, _ = newTestPrinter(PersonalityMinimal)
	got := p.ProgressBar(5, 10, 10)
	if got != "█████░░░░░  50%" {
		t.Errorf("minimal ProgressBar = %q", got)
	}

	got = p.ProgressBar(30, 10, 4)
	if got != "████ 100%" {
		t.Errorf("overfull ProgressBar = %q", got)
	}

	if got := p.ProgressBar(1, 0, 10); got != "1/0" {
		t.Errorf("zero total ProgressBar = %q", got)
	}
}
