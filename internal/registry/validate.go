package registry

import (
	"regexp"
	"sync"

	"github.com/Open-Verifik/zelf-online-version-sub000/internal/model"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/zelferr"
)

var patternCache sync.Map // pattern string -> *regexp.Regexp

// ValidateLabel checks a bare label against a domain's name rule: length
// bounds, allowed-character pattern and the reserved-word set.
func ValidateLabel(cfg *model.DomainConfig, label string) error {
	rule := cfg.Validation

	if len(label) < rule.MinLength || (rule.MaxLength > 0 && len(label) > rule.MaxLength) {
		return zelferr.ErrInvalidNameLength
	}

	if rule.Pattern != "" {
		re, err := compiledPattern(rule.Pattern)
		if err != nil {
			return zelferr.ErrInvalidDomain.WithCause(err)
		}
		if !re.MatchString(label) {
			return zelferr.ErrInvalidTagName
		}
	}

	for _, reserved := range rule.Reserved {
		if label == reserved {
			return zelferr.ErrReservedTagName
		}
	}

	return nil
}

func compiledPattern(pattern string) (*regexp.Regexp, error) {
	if cached, ok := patternCache.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	patternCache.Store(pattern, re)
	return re, nil
}
