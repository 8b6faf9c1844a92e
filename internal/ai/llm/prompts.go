package llm

import (
	"fmt"
	"strings"
)

// SystemPromptTokenRisk asks the model for a bounded memecoin risk score
const SystemPromptTokenRisk = `You are a risk analyst for Solana memecoins. A tracked wallet just bought the token described below. Decide whether copying the buy is reasonable.

Weigh liquidity depth, volume relative to liquidity, pair age, buy/sell imbalance, recent price change, and market cap. Thin liquidity, very new pairs, and extreme pumps are red flags. A reputable tracked wallet is a mild positive, never sufficient on its own.

Your response must be in valid JSON format with the following structure:
{
  "score": 0-100,
  "reasoning": "two or three sentences",
  "risk_level": "LOW" | "MEDIUM" | "HIGH" | "EXTREME",
  "recommendation": "BUY" | "SKIP"
}

Higher score means safer to copy. Be conservative: scores above 80 require deep liquidity and organic volume.`

// BuildTokenRiskPrompt renders the token context for the scoring request
func BuildTokenRiskPrompt(tc TokenContext, sourceLabel string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Token address: %s\n", tc.Address)
	if tc.Symbol != "" || tc.Name != "" {
		fmt.Fprintf(&b, "Token: %s (%s)\n", tc.Name, tc.Symbol)
	}
	if sourceLabel != "" {
		fmt.Fprintf(&b, "Tracked wallet: %s\n", sourceLabel)
	}
	if tc.WhaleSolAmount > 0 {
		fmt.Fprintf(&b, "Wallet spent: %.4f SOL\n", tc.WhaleSolAmount)
	}

	if !tc.HasMarketData {
		b.WriteString("\nMarket data: unavailable (token not listed on any tracked DEX)\n")
		return b.String()
	}

	b.WriteString("\nMarket data:\n")
	fmt.Fprintf(&b, "- Price (USD): %.10g\n", tc.PriceUSD)
	fmt.Fprintf(&b, "- Liquidity (USD): %.2f\n", tc.LiquidityUSD)
	fmt.Fprintf(&b, "- Volume 24h (USD): %.2f\n", tc.Volume24h)
	fmt.Fprintf(&b, "- Price change 1h: %.2f%%\n", tc.PriceChange1h)
	fmt.Fprintf(&b, "- Price change 24h: %.2f%%\n", tc.PriceChange24h)
	if tc.MarketCap > 0 {
		fmt.Fprintf(&b, "- Market cap (USD): %.2f\n", tc.MarketCap)
	}
	fmt.Fprintf(&b, "- Transactions 24h: %d buys / %d sells\n", tc.Buys24h, tc.Sells24h)
	if tc.PairAgeHours > 0 {
		fmt.Fprintf(&b, "- Pair age: %.1f hours\n", tc.PairAgeHours)
	}

	return b.String()
}
