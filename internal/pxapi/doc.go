// Package pxapi is a typed client for the instance registration REST API.
//
// Every call goes through a domain.Requester. Malformed bodies and missing
// fields are reported as domain.ErrDecode.
package pxapi
