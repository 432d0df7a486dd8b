// Package admission provides ready-made admission policies for processor.Processor.
//
//   - Limit: fixed number of concurrent items, queue order
//   - Weighted: summed weight budget with look-ahead
//   - Deprioritize: keeps a class of items (videos, say) waiting while anything else can run
//   - TierLimit: adaptive limit driven by item size tiers loaded from YAML
//   - Chain: narrows the admitted set through several policies
//
// Every policy returns a processor.AdmissionFunc and is pure: it only reads
// the snapshots it is given.
package admission
