package rpc

import (
	"encoding/json"

	"github.com/goevery/classcast/internal/ierr"
)

// MethodError is the event used to report a failed request back to the
// connection that sent it.
const MethodError = "error"

type Request struct {
	Id     string           `json:"id,omitempty"`
	Method string           `json:"method"`
	Params *json.RawMessage `json:"params,omitempty"`
}

func NewNotification(method string, params any) (Request, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return Request{}, err
	}

	payload := json.RawMessage(raw)

	return Request{
		Method: method,
		Params: &payload,
	}, nil
}

func (r Request) ReplyWithError(err ierr.Error) Response {
	return Response{
		RequestId: r.Id,
		Error:     &err,
	}
}

type Response struct {
	RequestId string      `json:"requestId,omitempty"`
	Error     *ierr.Error `json:"error,omitempty"`
}

func (r Response) IsFailure() bool {
	return r.Error != nil
}
