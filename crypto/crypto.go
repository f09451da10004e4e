// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package crypto provides the cryptographic primitives and key lifecycle
// interfaces used by the handshake and channel packages.
//
// This file is intentionally minimal to avoid circular dependencies. The
// concrete implementations live in subpackages:
//   - crypto/keys: key pair generation (RSA-PSS signing, ECDH P-256)
//   - crypto/storage: local private-key storage
//   - crypto/formats: JWK/PEM import and export
//   - crypto/rotation: signing key rotation
package crypto
