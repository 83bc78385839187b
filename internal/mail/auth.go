package mail

import (
	"errors"
	"net/smtp"
)

// auth implements the LOGIN mechanism, which the submission servers this
// targets advertise instead of PLAIN.
type auth struct {
	username string
	password string
}

func loginAuth(username, password string) smtp.Auth {
	return &auth{username: username, password: password}
}

func (a *auth) Start(server *smtp.ServerInfo) (string, []byte, error) {
	if !server.TLS {
		return "", nil, errors.New("refusing LOGIN auth without TLS")
	}
	return "LOGIN", nil, nil
}

func (a *auth) Next(fromServer []byte, more bool) ([]byte, error) {
	if !more {
		return nil, nil
	}
	switch string(fromServer) {
	case "Username:":
		return []byte(a.username), nil
	case "Password:":
		return []byte(a.password), nil
	default:
		return nil, errors.New("unexpected LOGIN challenge: " + string(fromServer))
	}
}
