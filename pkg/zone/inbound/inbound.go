// Package inbound parses the string arguments carried by decoded client commands. Every failure
// wraps ErrMalformedArgument so callers can drop the request and move on.
package inbound

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

var ErrMalformedArgument = eris.New("malformed command argument")

// Language ids run from 1 (basic) to MaxLanguageID.
const MaxLanguageID = 11

// CharacterMatchQuery filters the players a character-match search returns.
type CharacterMatchQuery struct {
	MaskCount   uint32
	PlayerFlags uint32
	Masks       [3]uint32
	FactionCRC  uint32
	// RaceID of -1 matches every race.
	RaceID int32
	// Title is empty when the client sent the literal `""`.
	Title string
	Extra string
}

// ParseCharacterMatch parses "<masks> <flags> <m2> <m3> <m4> <faction> <race> <title> <extra>".
func ParseCharacterMatch(arg string) (CharacterMatchQuery, error) {
	f := strings.Fields(arg)
	if len(f) != 9 {
		return CharacterMatchQuery{}, eris.Wrapf(ErrMalformedArgument, "character match wants 9 fields, got %d", len(f))
	}

	var (
		q    CharacterMatchQuery
		err  error
		nums [6]uint32
	)
	for i := range nums {
		if nums[i], err = parseUint32(f[i]); err != nil {
			return CharacterMatchQuery{}, eris.Wrapf(err, "character match field %d", i)
		}
	}
	race, err := strconv.ParseInt(f[6], 10, 32)
	if err != nil {
		return CharacterMatchQuery{}, eris.Wrapf(ErrMalformedArgument, "character match race %q", f[6])
	}

	q.MaskCount = nums[0]
	q.PlayerFlags = nums[1]
	q.Masks = [3]uint32{nums[2], nums[3], nums[4]}
	q.FactionCRC = nums[5]
	q.RaceID = int32(race)
	if f[7] != `""` {
		q.Title = f[7]
	}
	q.Extra = f[8]
	return q, nil
}

// ParseMatchPreferences parses "<unused> <m1> <m2> <m3> <m4>" into the four match slots.
func ParseMatchPreferences(arg string) ([4]uint32, error) {
	f := strings.Fields(arg)
	if len(f) != 5 {
		return [4]uint32{}, eris.Wrapf(ErrMalformedArgument, "match wants 5 fields, got %d", len(f))
	}
	var out [4]uint32
	for i := range out {
		v, err := parseUint32(f[i+1])
		if err != nil {
			return [4]uint32{}, eris.Wrapf(err, "match field %d", i+1)
		}
		out[i] = v
	}
	return out, nil
}

// ParseSpokenLanguage parses a language id.
func ParseSpokenLanguage(arg string) (uint32, error) {
	id, err := parseUint32(strings.TrimSpace(arg))
	if err != nil {
		return 0, err
	}
	if id == 0 || id > MaxLanguageID {
		return 0, eris.Wrapf(ErrMalformedArgument, "language %d out of range", id)
	}
	return id, nil
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, eris.Wrapf(ErrMalformedArgument, "%q is not an unsigned integer", s)
	}
	return uint32(v), nil
}
