package workers

import (
	"yoma-api/config"
	"yoma-api/services"
)

const (
	JobRewardTransactions  = "reward-transactions"
	JobWalletCreations     = "wallet-creations"
	JobCredentialIssuances = "credential-issuances"
	JobOpportunityExpiry   = "opportunity-expiry"
)

// Services are the job targets.
type Services struct {
	Rewards       *services.RewardService
	Wallets       *services.WalletService
	Credentials   *services.SSIService
	Opportunities *services.OpportunityService
}

// Jobs returns the background jobs with the configured intervals.
func Jobs(cfg config.JobsConfig, svc Services) []Job {
	return []Job{
		{Name: JobWalletCreations, Interval: cfg.WalletInterval, Run: svc.Wallets.ProcessWalletCreations},
		{Name: JobRewardTransactions, Interval: cfg.RewardInterval, Run: svc.Rewards.ProcessRewardTransactions},
		{Name: JobCredentialIssuances, Interval: cfg.CredentialInterval, Run: svc.Credentials.ProcessIssuances},
		{Name: JobOpportunityExpiry, Interval: cfg.ExpiryInterval, Run: svc.Opportunities.ExpireOpportunities},
	}
}
