package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 1000.0, cfg.Referral.SignupBonus)
	assert.Equal(t, 0.1, cfg.Referral.DailyBonusRate)
	assert.Equal(t, 3, cfg.Referral.BaseRolls)
	assert.Equal(t, 11, cfg.Staking.PointsScaleExp)

	punk, ok := cfg.Referral.Special("punk")
	require.True(t, ok)
	assert.Equal(t, 5.0, punk.MinSwap)
	assert.Equal(t, 500.0, punk.BonusPoints)

	_, ok = cfg.Referral.Special("GRAY-WAVE-07")
	assert.False(t, ok)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
referral:
  min_swap_amount: 50
  special_codes:
    Summer:
      min_swap: 1
      bonus_points: 42
      description: summer promo
staking:
  tokens:
    - symbol: USDX
      namespace: evm
      address: "0x0000000000000000000000000000000000000a11"
      staking_contract: "0x0000000000000000000000000000000000000b11"
      decimals: 6
    - symbol: USDS
      namespace: solana
      address: So11111111111111111111111111111111111111112
      decimals: 9
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 50.0, cfg.Referral.MinSwapAmount)

	summer, ok := cfg.Referral.Special("SUMMER")
	require.True(t, ok)
	assert.Equal(t, 42.0, summer.BonusPoints)

	tok, ok := cfg.Staking.Token("usdx")
	require.True(t, ok)
	assert.Equal(t, 6, tok.Decimals)
	assert.Len(t, cfg.Staking.StakingTokens(), 1)
	assert.Len(t, cfg.Staking.TokensFor("solana"), 1)
}

func TestLoadEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8080\n"), 0o644))
	t.Setenv("REFERRAL_SERVER_PORT", "9090")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Staking.Tokens = []TokenConfig{{Symbol: "BTC", Namespace: "bitcoin"}}
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Referral.BaseRolls = 0
	assert.Error(t, cfg.Validate())

	assert.NoError(t, Default().Validate())
}
