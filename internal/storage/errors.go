package storage

import (
	"github.com/juspay/hyperswitch-sub035/pkg/db"
	pkgerrors "github.com/juspay/hyperswitch-sub035/pkg/errors"
)

func notFound(err error, msg string) error {
	if db.IsNotFound(err) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, msg)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "query failed")
}
