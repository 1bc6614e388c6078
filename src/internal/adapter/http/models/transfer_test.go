package models

import "testing"

func TestParseMinorUnits(t *testing.T) {
	cases := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{"30.00", 3000, false},
		{"0.01", 1, false},
		{"5", 500, false},
		{"999.99", 99999, false},
		{"0", 0, true},
		{"-5.00", 0, true},
		{"1.001", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}

	for _, tc := range cases {
		got, err := ParseMinorUnits(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("%q: expected %d, got %d", tc.raw, tc.want, got)
		}
	}
}

func TestFormatMinorUnits(t *testing.T) {
	if got := FormatMinorUnits(7000); got != "70.00" {
		t.Fatalf("expected 70.00, got %q", got)
	}
	if got := FormatMinorUnits(1); got != "0.01" {
		t.Fatalf("expected 0.01, got %q", got)
	}
	if got := FormatMinorUnits(0); got != "0.00" {
		t.Fatalf("expected 0.00, got %q", got)
	}
}

func TestTransferRequestValidate(t *testing.T) {
	valid := TransferRequest{
		SourceAccountID:      "A",
		DestinationAccountID: "B",
		Amount:               "10.00",
		IdempotencyKey:       "k1",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	missingKey := valid
	missingKey.IdempotencyKey = " "
	if err := missingKey.Validate(); err == nil {
		t.Fatal("expected error for missing idempotency key")
	}

	badAmount := valid
	badAmount.Amount = "10.005"
	if err := badAmount.Validate(); err == nil {
		t.Fatal("expected error for sub-minor-unit amount")
	}
}
