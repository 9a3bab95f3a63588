/*
Package orm provides an easy to use db wrapper

Break state space into prefixed sections called Buckets.
* Each bucket contains only one type of model, serialized with protobuf.
* It has a primary key, chosen by the caller (often from a Sequence).
* It may possess one or more secondary indexes (1:N).
* Easy queries for one and iteration by key prefix.

Sequences and Counters are stored next to the buckets and are meant to be
mutated in the same cache wrap as the models they describe.
*/
package orm
