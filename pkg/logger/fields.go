package logger

import (
	"github.com/amoylab/mdprovider/pkg/omm"
	"go.uber.org/zap"
)

// Session tags a log line with the client session handle.
func Session(h omm.Handle) zap.Field {
	return zap.String("session", string(h))
}

// Token tags a log line with a request stream token.
func Token(t omm.Token) zap.Field {
	return zap.Uint64("token", uint64(t))
}

// Domain tags a log line with the message model type.
func Domain(m omm.MsgModelType) zap.Field {
	return zap.Stringer("domain", m)
}

// Item tags a log line with the requested item name.
func Item(name string) zap.Field {
	return zap.String("item", name)
}
