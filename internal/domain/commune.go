package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// Corsican codes are mapped above the metropolitan range so they stay
// distinct integers for the models.
const (
	corsicaSouthDepartement = 100
	corsicaNorthDepartement = 101
	corsicaSouthCommuneBase = 100000
	corsicaNorthCommuneBase = 110000
)

// Estimation input bounds.
const (
	MinSurface = 9
	MaxSurface = 250
	MinRooms   = 1
	MaxRooms   = 50
)

var communeCodePattern = regexp.MustCompile(`^(2[AB]?|\d?\d)\d{3}$`)

// ErrInvalidCommuneCode is returned for codes that are not INSEE commune codes.
var ErrInvalidCommuneCode = errors.New("invalid commune code")

// ValidateCommuneCode checks an INSEE commune code such as "75056" or "2A004".
func ValidateCommuneCode(code string) error {
	if len(code) < 4 || len(code) > 5 || !communeCodePattern.MatchString(code) {
		return fmt.Errorf("%w: %q", ErrInvalidCommuneCode, code)
	}
	return nil
}

// EncodeCommuneCode maps a commune code to an integer: numeric codes as is,
// "2A004" to 100004 and "2B033" to 110033.
func EncodeCommuneCode(code string) (int, error) {
	if n, err := strconv.Atoi(code); err == nil {
		return n, nil
	}
	if len(code) < 5 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCommuneCode, code)
	}
	n, err := strconv.Atoi(code[len(code)-3:])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCommuneCode, code)
	}
	switch code[:2] {
	case "2A":
		return n + corsicaSouthCommuneBase, nil
	case "2B":
		return n + corsicaNorthCommuneBase, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidCommuneCode, code)
	}
}

// EncodeDepartement maps a département code to an integer, Corsica to 100/101.
func EncodeDepartement(code string) (int, error) {
	switch code {
	case "2A":
		return corsicaSouthDepartement, nil
	case "2B":
		return corsicaNorthDepartement, nil
	}
	n, err := strconv.Atoi(code)
	if err != nil {
		return 0, fmt.Errorf("encode departement %q: %w", code, err)
	}
	return n, nil
}

// IsOverseas reports whether the département is one of the overseas
// départements excluded from training (971 to 974).
func IsOverseas(departement string) bool {
	switch departement {
	case "971", "972", "973", "974":
		return true
	}
	return false
}

// EstimationRequest is a price estimate query.
type EstimationRequest struct {
	Surface     int    `json:"surface"`
	Rooms       int    `json:"rooms"`
	CommuneCode string `json:"commune_code"`
}

// Validate returns every violated constraint joined into one error.
func (r EstimationRequest) Validate() error {
	var errs []error
	if r.Surface < MinSurface || r.Surface > MaxSurface {
		errs = append(errs, fmt.Errorf("surface must be between %d and %d", MinSurface, MaxSurface))
	}
	if r.Rooms < MinRooms || r.Rooms > MaxRooms {
		errs = append(errs, fmt.Errorf("rooms must be between %d and %d", MinRooms, MaxRooms))
	}
	if err := ValidateCommuneCode(r.CommuneCode); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
