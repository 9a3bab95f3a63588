/*
Package gconf implements a configuration store intended to be used as a global,
in-database configuration.

Each extension keeps a single protobuf serialized configuration object under
the "_c:<pkg>" key. It is written once from the genesis file and loaded
whenever the extension needs one of its parameters.

Not being able to load a configuration is a critical condition for the
application and there is no recovery path for the client. Application must be
configured correctly before any operation can succeed.
*/
package gconf
