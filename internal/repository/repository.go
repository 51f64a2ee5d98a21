package repository

import (
	"errors"
	"strings"

	"github.com/Tonic56/coinfolio/lib/errs"
	"gorm.io/gorm"
)

// translate maps driver errors onto the errs sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.ErrNotFound
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE") || strings.Contains(msg, "duplicate") {
		return errs.ErrAlreadyExists
	}
	return err
}
