// SPDX-License-Identifier: Apache-2.0

package tlskex

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tlsmate-go/tlsmate/tlswire"
)

func TestECDHExchangeX25519Matches(t *testing.T) {
	client, err := NewECDHExchange(groupX25519)
	require.NoError(t, err)
	server, err := NewECDHExchange(groupX25519)
	require.NoError(t, err)

	clientShare, err := client.Offer()
	require.NoError(t, err)
	serverShare, err := server.Offer()
	require.NoError(t, err)

	secret1, err := client.Complete(serverShare.Value)
	require.NoError(t, err)
	secret2, err := server.Complete(clientShare.Value)
	require.NoError(t, err)
	require.Equal(t, secret1, secret2)
}

func TestECDHExchangeX448Matches(t *testing.T) {
	client, err := NewECDHExchange(groupX448)
	require.NoError(t, err)
	server, err := NewECDHExchange(groupX448)
	require.NoError(t, err)

	clientShare, err := client.Offer()
	require.NoError(t, err)
	serverShare, err := server.Offer()
	require.NoError(t, err)

	secret1, err := client.Complete(serverShare.Value)
	require.NoError(t, err)
	secret2, err := server.Complete(clientShare.Value)
	require.NoError(t, err)
	require.Equal(t, secret1, secret2)
}

func TestDHExchangeMatches(t *testing.T) {
	p := bigFromHex("FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E088A67CC74020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7EDEE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3DC2007CB8A163BF0598DA48361C55D39A69163FA8FD24CF5F83655D23DCA3AD961C62F356208552BB9ED529077096966D670C354E4ABC9804F1746C08CA18217C32905E462E36CE3BE39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9DE2BCBF6955817183995497CEA956AE515D2261898FA051015728E5A8AACAA68FFFFFFFFFFFFFFFF")
	g := bigFromHex("02")

	client, err := NewDHExchange(p, g)
	require.NoError(t, err)
	server, err := NewDHExchange(p, g)
	require.NoError(t, err)

	clientShare, _ := client.Offer()
	serverShare, _ := server.Offer()

	secret1, err := client.Complete(serverShare.Value)
	require.NoError(t, err)
	secret2, err := server.Complete(clientShare.Value)
	require.NoError(t, err)
	require.Equal(t, secret1, secret2)
}

func TestSchedule13ProducesDistinctSecrets(t *testing.T) {
	sched, err := NewSchedule13(tlswire.HashSHA256, nil)
	require.NoError(t, err)

	shared := make([]byte, 32)
	for i := range shared {
		shared[i] = byte(i)
	}
	transcript := make([]byte, 32)

	clientHS, serverHS, err := sched.AdvanceHandshake(shared, transcript)
	require.NoError(t, err)
	require.NotEqual(t, clientHS, serverHS)
	require.Len(t, clientHS, 32)

	clientAP, serverAP, exporter, err := sched.AdvanceMaster(transcript)
	require.NoError(t, err)
	require.NotEqual(t, clientAP, serverAP)
	require.NotEqual(t, clientAP, clientHS)
	require.Len(t, exporter, 32)
}

func TestMasterSecret12Deterministic(t *testing.T) {
	preMaster := make([]byte, 48)
	clientRandom := make([]byte, 32)
	serverRandom := make([]byte, 32)
	for i := range clientRandom {
		clientRandom[i] = byte(i)
	}

	ms1, err := DeriveMasterSecret12(tlswire.TLS12, tlswire.HashSHA256, preMaster, clientRandom, serverRandom, nil, false)
	require.NoError(t, err)
	ms2, err := DeriveMasterSecret12(tlswire.TLS12, tlswire.HashSHA256, preMaster, clientRandom, serverRandom, nil, false)
	require.NoError(t, err)
	require.Equal(t, ms1, ms2)
	require.Len(t, ms1, 48)
}

func TestMasterSecret12UsesDualPRFBelowTLS12(t *testing.T) {
	preMaster := make([]byte, 48)
	clientRandom := make([]byte, 32)
	serverRandom := make([]byte, 32)
	for i := range clientRandom {
		clientRandom[i] = byte(i + 1)
	}

	tls10, err := DeriveMasterSecret12(tlswire.TLS10, tlswire.HashSHA256, preMaster, clientRandom, serverRandom, nil, false)
	require.NoError(t, err)
	tls12, err := DeriveMasterSecret12(tlswire.TLS12, tlswire.HashSHA256, preMaster, clientRandom, serverRandom, nil, false)
	require.NoError(t, err)
	require.Len(t, tls10, 48)
	require.NotEqual(t, tls10, tls12)
}

func bigFromHex(s string) *big.Int {
	n, _ := new(big.Int).SetString(s, 16)
	return n
}
