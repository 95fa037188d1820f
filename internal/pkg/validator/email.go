package validator

import (
	"errors"
	"net/mail"
	"strings"
)

// Recipients parses a comma separated list of mail addresses and returns
// the bare addresses.
func Recipients(list string) ([]string, error) {
	if strings.TrimSpace(list) == "" {
		return nil, errors.New("no recipients")
	}

	parsed, err := mail.ParseAddressList(list)
	if err != nil {
		return nil, errors.New("invalid email format")
	}

	addrs := make([]string, 0, len(parsed))
	for _, a := range parsed {
		at := strings.LastIndex(a.Address, "@")
		if at <= 0 || !strings.Contains(a.Address[at+1:], ".") {
			return nil, errors.New("invalid email domain")
		}
		addrs = append(addrs, a.Address)
	}
	return addrs, nil
}
