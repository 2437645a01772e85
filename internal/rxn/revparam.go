package rxn

import "strings"

// RevParam selects how the products of a reaction are placed relative to the
// reaction position, and how that placement feeds back into the binding
// radius of the reverse reaction.
type RevParam int

const (
	RevNone RevParam = iota
	RevIrrev
	RevConfspread
	RevBounce
	RevPgem
	RevPgemMax
	RevPgemMaxW
	RevRatio
	RevUnbindRad
	RevPgem2
	RevPgemMax2
	RevRatio2
	RevOffset
	RevFixed
)

var revParamNames = [...]string{
	RevNone:       "none",
	RevIrrev:      "irrev",
	RevConfspread: "confspread",
	RevBounce:     "bounce",
	RevPgem:       "pgem",
	RevPgemMax:    "pgemmax",
	RevPgemMaxW:   "pgemmaxw",
	RevRatio:      "ratio",
	RevUnbindRad:  "unbindrad",
	RevPgem2:      "pgem2",
	RevPgemMax2:   "pgemmax2",
	RevRatio2:     "ratio2",
	RevOffset:     "offset",
	RevFixed:      "fixed",
}

var revParamCodes = map[string]RevParam{
	"i": RevIrrev,
	"a": RevConfspread,
	"p": RevPgem,
	"x": RevPgemMax,
	"r": RevRatio,
	"b": RevUnbindRad,
	"q": RevPgem2,
	"y": RevPgemMax2,
	"s": RevRatio2,
	"o": RevOffset,
	"f": RevFixed,
}

func (rp RevParam) String() string {
	if rp < 0 || int(rp) >= len(revParamNames) {
		return "none"
	}
	return revParamNames[rp]
}

// ParseRevParam accepts a one-letter code or a full name. Anything else is
// RevNone.
func ParseRevParam(s string) RevParam {
	s = strings.ToLower(strings.TrimSpace(s))
	if rp, ok := revParamCodes[s]; ok {
		return rp
	}
	for i, name := range revParamNames {
		if name == s {
			return RevParam(i)
		}
	}
	return RevNone
}

// usesProductDistance reports whether the forward rate of a reaction depends
// on the product separation of its reverse under this placement method.
func (rp RevParam) usesProductDistance() bool {
	switch rp {
	case RevPgem, RevBounce, RevPgemMax, RevPgemMaxW, RevRatio, RevOffset, RevFixed:
		return true
	}
	return false
}
