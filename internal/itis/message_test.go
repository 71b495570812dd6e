package itis

import (
	"errors"
	"testing"
)

func TestBuildVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		category Category
		code     Code
		want     []Code
	}{
		{name: "information has no banner", category: CategoryInformation, code: SlowTraffic, want: []Code{SlowTraffic}},
		{name: "alert prepends banner", category: CategoryAlert, code: BlackIce, want: []Code{Alert, BlackIce}},
		{name: "warning prepends banner", category: CategoryWarning, code: Tornado, want: []Code{Warning, Tornado}},
		{name: "watch prepends banner", category: CategoryWatch, code: Tornado, want: []Code{Watch, Tornado}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := Build(tt.category, tt.code)
			if err != nil {
				t.Fatalf("Build(%s, %s) error: %v", tt.category, tt.code.Label(), err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("payload = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("payload = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestBuildCancelVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		category Category
		code     Code
		want     []Code
	}{
		{name: "information cancel is bare code", category: CategoryInformation, code: SlowTraffic, want: []Code{SlowTraffic}},
		{name: "alert cancel banner", category: CategoryAlert, code: BlackIce, want: []Code{AlertCanceled, BlackIce}},
		{name: "warning cancel banner", category: CategoryWarning, code: IceStorm, want: []Code{WarningCanceled, IceStorm}},
		{name: "watch cancel banner", category: CategoryWatch, code: WinterStorm, want: []Code{WatchCanceled, WinterStorm}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildCancel(tt.category, tt.code)
			if err != nil {
				t.Fatalf("BuildCancel(%s, %s) error: %v", tt.category, tt.code.Label(), err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("payload = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("payload = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestBuildRejectsCodeOutsideCategory(t *testing.T) {
	t.Parallel()
	// Tornado belongs to warning/watch, not alert.
	if _, err := Build(CategoryAlert, Tornado); !errors.Is(err, ErrInvalidCodeForCategory) {
		t.Fatalf("Build error = %v, want ErrInvalidCodeForCategory", err)
	}
	if _, err := BuildCancel(CategoryInformation, Tornado); !errors.Is(err, ErrInvalidCodeForCategory) {
		t.Fatalf("BuildCancel error = %v, want ErrInvalidCodeForCategory", err)
	}
}

func TestParseCode(t *testing.T) {
	t.Parallel()
	c, err := ParseCode("SlowTraffic")
	if err != nil {
		t.Fatalf("ParseCode error: %v", err)
	}
	if c != SlowTraffic {
		t.Fatalf("ParseCode = %d, want %d", c, SlowTraffic)
	}
	if _, err := ParseCode("NotACode"); err == nil {
		t.Fatal("expected error for unknown code name")
	}
}

func TestFireOnceRegistry(t *testing.T) {
	t.Parallel()
	if !FireOnce(StoppedTraffic) {
		t.Fatal("StoppedTraffic should self-expire on duration")
	}
	if FireOnce(SlowTraffic) {
		t.Fatal("SlowTraffic should renew, not self-expire")
	}
}

func TestParseCategoryDefaultsToInformation(t *testing.T) {
	t.Parallel()
	cat, err := ParseCategory("")
	if err != nil {
		t.Fatalf("ParseCategory error: %v", err)
	}
	if cat != CategoryInformation {
		t.Fatalf("ParseCategory = %s, want %s", cat, CategoryInformation)
	}
}
