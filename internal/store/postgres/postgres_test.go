package postgres

import (
	"math/big"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/alanyoungcy/winzzers/internal/money"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  ClientConfig
		want string
	}{
		{"explicit dsn wins", ClientConfig{DSN: " postgres://x/y ", Host: "ignored"}, "postgres://x/y"},
		{"defaults", ClientConfig{Host: "db", Database: "winzzers", User: "u", Password: "p"},
			"postgres://u:p@db:5432/winzzers?sslmode=disable"},
		{"custom port and ssl", ClientConfig{Host: "db", Port: 6432, Database: "w", User: "u", Password: "p", SSLMode: "require"},
			"postgres://u:p@db:6432/w?sslmode=require"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DSN(tt.cfg); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNumericRoundTrip(t *testing.T) {
	a := money.MustParse("123456789.000001")
	got, err := fromNumeric(toNumeric(a))
	if err != nil || !got.Equal(a) {
		t.Errorf("got %s, %v; want %s", got, err, a)
	}
}

func TestFromNumericExponents(t *testing.T) {
	tests := []struct {
		name    string
		in      pgtype.Numeric
		want    string
		wantErr bool
	}{
		{"positive exp", pgtype.Numeric{Int: big.NewInt(185), Exp: 6, Valid: true}, "185.000000", false},
		{"negative exp integral", pgtype.Numeric{Int: big.NewInt(5000), Exp: -3, Valid: true}, "0.000005", false},
		{"fractional", pgtype.Numeric{Int: big.NewInt(5001), Exp: -3, Valid: true}, "", true},
		{"null", pgtype.Numeric{}, "", true},
		{"nan", pgtype.Numeric{NaN: true, Valid: true}, "", true},
		{"negative", pgtype.Numeric{Int: big.NewInt(-1), Valid: true}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fromNumeric(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && money.Format(got) != tt.want {
				t.Errorf("got %s, want %s", money.Format(got), tt.want)
			}
		})
	}
}

func TestMigrationNamesSorted(t *testing.T) {
	names, err := migrationNames()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) < 2 || names[0] != "001_markets.sql" || names[1] != "002_write_journal.sql" {
		t.Errorf("migrations = %v", names)
	}
}
