// Package obirdex is a client for an OBIR-Tree spatial-keyword index that
// stores its tree in Path ORAM.
//
// It runs the two-round search used to observe ORAM path remapping: a top-k
// query followed by one k=1 verification query per result, then a positional
// comparison of the access paths the index reported in both rounds.
//
//	client, _ := obirdex.New(obirdex.WithBaseURL("http://localhost:8080"))
//	res, _ := client.TwoRoundSearch(ctx, "cafe", 116.39, 39.91, 10)
//	fmt.Println(res.Summary.Identical, res.Summary.Different)
//
// BasicSearch runs the first-stage/second-stage protocol instead, where the
// index reports one before/after path pair for the whole session and the
// client applies it to every result.
package obirdex
