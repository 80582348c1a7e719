// Package dispatch sends templated transactional emails to a stream of
// recipient records read from tabular input, one recipient at a time.
//
// The pipeline renders a per-recipient message body from a placeholder
// template, delivers it through the Mailgun HTTP API, retries failed
// deliveries with a fixed backoff, paces consecutive sends, and returns an
// aggregate summary of the run.
//
// # Basic Usage
//
//	cfg, err := dispatch.Load("config.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	provider, err := dispatch.NewMailgunProvider(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	pipe, err := dispatch.New(cfg, provider,
//		dispatch.WithFieldMap(dispatch.FieldMap{"name": "first_name"}),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	src, err := dispatch.OpenCSV("recipients.csv")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer src.Close()
//
//	summary, err := pipe.Run(context.Background(), src)
//
// # Behavior
//
//   - Recipients are processed strictly in input order, sequentially.
//   - A recipient whose template render fails is counted as failed
//     without any delivery attempt; render errors are never retried.
//   - Each recipient gets at most max_retries delivery attempts, with
//     retry_delay between attempts.
//   - delay_between_emails elapses between consecutive recipients,
//     independent of retries, and is skipped after the last recipient.
//   - Every attempt outcome is logged; the run returns counters
//     satisfying succeeded + failed == total.
package dispatch
