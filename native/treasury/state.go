package treasury

import "fmt"

// Storage abstracts the subset of host ledger state the store needs. Every
// record the store owns lives behind this interface; callers never write
// these keys directly.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

func contextKey(terminal string, project uint64, token string) []byte {
	return []byte(fmt.Sprintf("treasury/context/%s/%d/%s", terminal, project, token))
}

func terminalIndexKey(project uint64, token string) []byte {
	return []byte(fmt.Sprintf("treasury/terminals/%d/%s", project, token))
}

func balanceKey(terminal string, project uint64, token string) []byte {
	return []byte(fmt.Sprintf("treasury/balance/%s/%d/%s", terminal, project, token))
}

func limitGroupKey(project, rulesetID uint64, terminal, token string) []byte {
	return []byte(fmt.Sprintf("treasury/limits/%d/%d/%s/%s", project, rulesetID, terminal, token))
}

func usedPayoutKey(project, rulesetID uint64, terminal, token string, currency uint32) []byte {
	return []byte(fmt.Sprintf("treasury/used/payout/%d/%d/%s/%s/%d", project, rulesetID, terminal, token, currency))
}

func usedSurplusKey(project, rulesetID uint64, terminal, token string, currency uint32) []byte {
	return []byte(fmt.Sprintf("treasury/used/surplus/%d/%d/%s/%s/%d", project, rulesetID, terminal, token, currency))
}
